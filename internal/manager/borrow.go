package manager

import (
	"context"
	"sync"
)

// BorrowCurrent returns the resident handle for the duration of one
// prediction. While a load or switch is in flight it waits for the
// transition to settle, bounded by ctx. Outside Ready it fails with
// ModelUnavailableError. release is idempotent and must always be called.
func (m *Manager) BorrowCurrent(ctx context.Context) (*ModelHandle, func(), error) {
	for {
		m.mu.Lock()
		switch m.lc.State {
		case StateReady:
			m.borrows++
			h := m.handle
			m.mu.Unlock()
			borrowsGauge.Inc()
			return h, m.releaser(), nil
		case StateLoading, StateSwitching:
			wait, st := m.settled, m.lc.State
			m.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, func() {}, &ModelUnavailableError{State: st}
			}
		default:
			st := m.lc.State
			m.mu.Unlock()
			return nil, func() {}, &ModelUnavailableError{State: st}
		}
	}
}

func (m *Manager) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.borrows--
			if m.borrows == 0 {
				m.cond.Broadcast()
			}
			m.mu.Unlock()
			borrowsGauge.Dec()
		})
	}
}

// Borrows reports outstanding borrows.
func (m *Manager) Borrows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.borrows
}
