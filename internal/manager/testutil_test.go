package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"forecastd/internal/artifact"
	"forecastd/internal/catalog"
	"forecastd/internal/forecast"
	"forecastd/pkg/types"
)

// fakeSource resolves locators from a map; anything in remote is "fetched".
type fakeSource struct {
	mu      sync.Mutex
	local   map[string]bool
	remote  map[string]bool
	fetches int
}

func newFakeSource() *fakeSource {
	return &fakeSource{local: map[string]bool{}, remote: map[string]bool{}}
}

func (s *fakeSource) ResolveLocal(loc string) (artifact.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local[loc] {
		return artifact.Artifact{Locator: loc, Path: "/cache/" + loc}, true
	}
	return artifact.Artifact{}, false
}

func (s *fakeSource) FetchRemote(ctx context.Context, loc string) (artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.remote[loc] {
		return artifact.Artifact{}, &artifact.NetworkError{Locator: loc, Err: errors.New("unreachable")}
	}
	s.fetches++
	s.local[loc] = true
	return artifact.Artifact{Locator: loc, Path: "/cache/" + loc}, nil
}

type fakePredictor struct {
	variant string
	closed  atomic.Bool
}

func (p *fakePredictor) Predict(ctx context.Context, series []types.Bar, horizon int, params forecast.SamplingParams) ([]forecast.Period, error) {
	if p.closed.Load() {
		return nil, forecast.ErrUnloaded
	}
	return make([]forecast.Period, horizon), nil
}

// fakeBackend counts live predictors; gate, when set, blocks Load until closed.
type fakeBackend struct {
	mu      sync.Mutex
	live    int
	loads   int
	failFor map[string]error
	gate    chan struct{}
	started chan string
}

func (b *fakeBackend) Load(ctx context.Context, req forecast.LoadRequest) (forecast.Predictor, error) {
	if b.started != nil {
		b.started <- req.VariantID
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failFor[req.VariantID]; err != nil {
		return nil, err
	}
	b.live++
	b.loads++
	return &fakePredictor{variant: req.VariantID}, nil
}

func (b *fakeBackend) Unload(p forecast.Predictor) error {
	fp := p.(*fakePredictor)
	if fp.closed.Swap(true) {
		return nil
	}
	b.mu.Lock()
	b.live--
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func testVariants() []types.Variant {
	return []types.Variant{
		{ID: "small", ContextLength: 512, ModelLocator: "org/small", TokenizerLocator: "org/tok-base"},
		{ID: "mini", ContextLength: 2048, ModelLocator: "org/mini", TokenizerLocator: "org/tok-2k"},
		{ID: "remote", ContextLength: 1024, ModelLocator: "org/remote", TokenizerLocator: "org/tok-base"},
	}
}

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) (*Manager, *fakeSource, *fakeBackend) {
	t.Helper()
	cat, err := catalog.New(testVariants()...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	src := newFakeSource()
	for _, l := range []string{"org/small", "org/mini", "org/tok-base", "org/tok-2k"} {
		src.local[l] = true
	}
	src.remote["org/remote"] = true
	be := &fakeBackend{failFor: map[string]error{}}
	cfg := ManagerConfig{Catalog: cat, Source: src, Backend: be, DefaultVariant: "small"}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWithConfig(cfg), src, be
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func eventNames(evs []Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

func defaultParams() forecast.SamplingParams {
	return forecast.SamplingParams{Temperature: 1, TopP: 0.9, SampleCount: 1}
}
