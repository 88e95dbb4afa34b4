package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"forecastd/internal/artifact"
	"forecastd/internal/catalog"
	"forecastd/internal/forecast"
	"forecastd/pkg/types"
)

type Manager struct {
	catalog        *catalog.Catalog
	source         artifact.Source
	backend        forecast.Backend
	defaultVariant string
	device         string
	loadTimeout    time.Duration
	statePath      string
	publisher      EventPublisher
	log            zerolog.Logger
	now            func() time.Time
	startTime      time.Time

	// transMu serializes lifecycle transitions. Never held by borrowers.
	transMu sync.Mutex

	// mu guards everything below; cond signals borrow releases.
	mu         sync.Mutex
	cond       *sync.Cond
	lc         LifecycleState
	handle     *ModelHandle
	borrows    int
	settled    chan struct{} // closed when the in-flight transition ends
	lastErr    string
	loadsTotal uint64
}

// New constructs a manager over the built-in catalog.
func New(src artifact.Source, backend forecast.Backend, defaultVariant string) *Manager {
	return NewWithConfig(ManagerConfig{Source: src, Backend: backend, DefaultVariant: defaultVariant})
}

// State returns a snapshot of the lifecycle state. It never blocks on a
// transition.
func (m *Manager) State() LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lc
}

// Ready reports whether predictions can borrow the model.
func (m *Manager) Ready() bool {
	return m.State().State == StateReady
}

// CurrentVariant returns the resident variant, if any.
func (m *Manager) CurrentVariant() (types.Variant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return types.Variant{}, false
	}
	return m.handle.Variant, true
}

// Catalog exposes the immutable variant catalog.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// setStateLocked records a new lifecycle state. Caller holds m.mu.
func (m *Manager) setStateLocked(s LifecycleState) {
	m.lc = s
	setStateMetric(s.State)
	transitionsTotal.WithLabelValues(string(s.State)).Inc()
}
