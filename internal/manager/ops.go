package manager

import "context"

// SwitchTo replaces the resident model with variant id. Unknown ids fail
// with InvalidVariantError and leave the state untouched; a concurrent
// transition fails with BusyError. Outstanding borrows are drained before
// the previous handle is unloaded.
func (m *Manager) SwitchTo(ctx context.Context, id string) (SwitchResult, error) {
	v, ok := m.catalog.Lookup(id)
	if !ok {
		return SwitchResult{}, &InvalidVariantError{ID: id}
	}
	if !m.transMu.TryLock() {
		return SwitchResult{}, &BusyError{Current: m.State().State}
	}
	defer m.transMu.Unlock()

	from := m.State().Variant
	m.emit("switch_start", v.ID, map[string]any{"from": from})
	return m.transition(ctx, v)
}

// Reload reloads the current variant: the resident one when Ready, the
// failed one when Failed, the default when Unloaded.
func (m *Manager) Reload(ctx context.Context) (SwitchResult, error) {
	if !m.transMu.TryLock() {
		return SwitchResult{}, &BusyError{Current: m.State().State}
	}
	defer m.transMu.Unlock()

	id := m.State().Variant
	if id == "" {
		id = m.defaultVariant
	}
	v, ok := m.catalog.Lookup(id)
	if !ok {
		return SwitchResult{}, &InvalidVariantError{ID: id}
	}
	m.emit("switch_start", v.ID, map[string]any{"from": id, "reload": true})
	return m.transition(ctx, v)
}
