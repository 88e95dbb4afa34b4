package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forecastd/internal/admission"
	"forecastd/internal/artifact"
	"forecastd/internal/cache"
	"forecastd/internal/catalog"
	"forecastd/internal/forecast"
	"forecastd/internal/history"
	"forecastd/internal/httpapi"
	"forecastd/internal/manager"
	"forecastd/internal/prediction"
	"forecastd/internal/quotes"
)

// stack is a fully wired daemon behind an httptest server.
type stack struct {
	srv     *httptest.Server
	mgr     *manager.Manager
	adm     *admission.Controller
	backend *forecast.Simulated
	fetches *atomic.Int64
}

// newFakeHub serves every artifact file and counts downloads.
func newFakeHub(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var n atomic.Int64
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/resolve/main/") {
			http.NotFound(w, r)
			return
		}
		n.Add(1)
		_, _ = w.Write([]byte("weights"))
	}))
	t.Cleanup(hub.Close)
	return hub, &n
}

func newStack(t *testing.T, capacity int) *stack {
	t.Helper()
	hub, fetches := newFakeHub(t)
	src, err := artifact.NewHubSource(artifact.HubConfig{
		CacheDir: t.TempDir(),
		BaseURL:  hub.URL,
		Files:    []string{"config.json", "model.safetensors"},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("hub source: %v", err)
	}
	cat, err := catalog.WithBuiltins(nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	backend := forecast.NewSimulated(zerolog.Nop())
	ring := manager.NewRingPublisher(64)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:        cat,
		Source:         src,
		Backend:        backend,
		DefaultVariant: "kronos-small",
		Publisher:      ring,
	})
	adm := admission.New(admission.Config{Capacity: capacity, Timeout: 5 * time.Second})
	t.Cleanup(adm.Close)
	mem := cache.NewMemory(time.Minute, 0)
	t.Cleanup(mem.Close)
	hist, err := history.Open(context.Background(), history.DriverSQLite, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	qp := quotes.NewSynthetic()
	svc := prediction.New(prediction.Config{
		Models:   mgr,
		Admitter: adm,
		Cache:    mem,
		Quotes:   qp,
		History:  hist,
		Sampling: forecast.SamplingParams{Temperature: 1, TopP: 0.9, SampleCount: 1, Seed: 7},
	})
	srv := httptest.NewServer(httpapi.NewMux(httpapi.Deps{
		Models:      mgr,
		Predictions: svc,
		Events:      ring,
		Admission:   adm,
		Quotes:      qp,
		Checks:      []httpapi.HealthCheck{{Name: "history", Check: hist.Health}},
	}))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, mgr: mgr, adm: adm, backend: backend, fetches: fetches}
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}
