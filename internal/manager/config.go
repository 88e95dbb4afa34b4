package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"forecastd/internal/artifact"
	"forecastd/internal/catalog"
	"forecastd/internal/forecast"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultLoadTimeout = 10 * time.Minute
	defaultDevice      = "cpu"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Catalog        *catalog.Catalog
	Source         artifact.Source
	Backend        forecast.Backend
	DefaultVariant string
	Device         string
	// LoadTimeout bounds one artifact resolve + backend load. Loads are
	// detached from the caller's cancellation so a disconnected client
	// cannot leave the manager half-loaded.
	LoadTimeout time.Duration
	// StatePath, when set, persists the last ready variant as JSON.
	StatePath string
	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig. The manager starts
// Unloaded; call EnsureLoaded to bring up the default variant.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		catalog:        cfg.Catalog,
		source:         cfg.Source,
		backend:        cfg.Backend,
		defaultVariant: cfg.DefaultVariant,
		device:         cfg.Device,
		loadTimeout:    cfg.LoadTimeout,
		statePath:      cfg.StatePath,
		publisher:      cfg.Publisher,
		now:            cfg.Now,
		lc:             LifecycleState{State: StateUnloaded},
	}
	// Apply defaults if unset
	if m.catalog == nil {
		c, _ := catalog.New(catalog.Builtin()...)
		m.catalog = c
	}
	if m.device == "" {
		m.device = defaultDevice
	}
	if m.loadTimeout <= 0 {
		m.loadTimeout = defaultLoadTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	m.cond = sync.NewCond(&m.mu)
	m.startTime = m.now()
	setStateMetric(StateUnloaded)
	return m
}
