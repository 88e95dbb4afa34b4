package manager

import (
	"context"
	"fmt"
)

// Unload releases the resident model and moves to Unloaded.
// - New borrows are rejected as soon as the state changes.
// - Waits for outstanding borrows to be released, bounded by ctx. If ctx
//   ends first the previous state is restored and the model stays resident.
// - Unloads the predictor through the backend.
// - Forgets the persisted variant, so the next start uses the default.
func (m *Manager) Unload(ctx context.Context) error {
	return m.unload(ctx, true)
}

// Shutdown is Unload for process exit: the persisted variant is kept and
// restored by the next EnsureLoaded.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.unload(ctx, false)
}

func (m *Manager) unload(ctx context.Context, forget bool) error {
	if !m.transMu.TryLock() {
		return &BusyError{Current: m.State().State}
	}
	defer m.transMu.Unlock()

	// Wake the drain loop when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	old, prev := m.handle, m.lc
	m.setStateLocked(LifecycleState{State: StateUnloaded})
	for m.borrows > 0 && ctx.Err() == nil {
		m.cond.Wait()
	}
	if m.borrows > 0 {
		n := m.borrows
		m.setStateLocked(prev)
		m.mu.Unlock()
		m.log.Warn().Int("borrows", n).Msg("unload aborted while draining")
		return fmt.Errorf("unload: %d borrows outstanding: %w", n, ctx.Err())
	}
	m.handle = nil
	m.mu.Unlock()

	if forget {
		m.clearLastVariant()
	}
	if old == nil {
		return nil
	}
	m.emit("unload_start", old.Variant.ID, nil)
	err := m.backend.Unload(old.Predictor)
	if err != nil {
		m.log.Warn().Err(err).Str("variant", old.Variant.ID).Msg("unload")
	}
	m.emit("unload_done", old.Variant.ID, nil)
	return err
}
