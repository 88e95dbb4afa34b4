package cache

import (
	"context"
	"sync"
	"time"

	"forecastd/pkg/types"
)

type entry struct {
	value    types.Forecast
	inserted time.Time
}

// Memory is an in-process TTL cache with a background sweeper.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	cleaner *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewMemory returns a cache whose expired entries are swept every sweep
// interval. A non-positive sweep disables the background sweeper.
func NewMemory(ttl, sweep time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		m.cleaner = time.NewTicker(sweep)
		go m.backgroundCleaner()
	}
	return m
}

func (m *Memory) backgroundCleaner() {
	for {
		select {
		case <-m.cleaner.C:
			m.Sweep()
		case <-m.done:
			m.cleaner.Stop()
			return
		}
	}
}

// Close stops the sweeper.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) valid(e entry, now time.Time) bool {
	return now.Sub(e.inserted) < m.ttl
}

func (m *Memory) Get(_ context.Context, key string) (types.Forecast, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if ok && !m.valid(e, m.now()) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && !m.valid(cur, m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		ok = false
	}
	observe("memory", ok)
	if !ok {
		return types.Forecast{}, false
	}
	return e.value, true
}

func (m *Memory) Put(_ context.Context, key string, f types.Forecast) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredLocked(now)
	m.entries[key] = entry{value: f, inserted: now}
}

func (m *Memory) InvalidateAll(context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}

// Len counts entries that have not yet expired.
func (m *Memory) Len() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if m.valid(e, now) {
			n++
		}
	}
	return n
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictExpiredLocked(m.now())
}

func (m *Memory) evictExpiredLocked(now time.Time) int {
	n := 0
	for k, e := range m.entries {
		if !m.valid(e, now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
