package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"forecastd/internal/artifact"
	"forecastd/pkg/types"
)

func makeSeries(n int) []types.Bar {
	out := make([]types.Bar, n)
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 10.0
	for i := range out {
		price *= 1 + 0.01*float64((i%5)-2)
		out[i] = types.Bar{Date: d.AddDate(0, 0, i).Format("2006-01-02"), Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 1000}
	}
	return out
}

func loadSimulated(t *testing.T, ctxLen int) (*Simulated, Predictor) {
	t.Helper()
	dir := t.TempDir()
	b := NewSimulated(zerolog.Nop())
	p, err := b.Load(context.Background(), LoadRequest{
		VariantID:     "kronos-small",
		Tokenizer:     artifact.Artifact{Path: dir},
		Model:         artifact.Artifact{Path: dir},
		ContextLength: ctxLen,
	})
	require.NoError(t, err)
	return b, p
}

func TestSimulated_PredictShape(t *testing.T) {
	b, p := loadSimulated(t, 512)
	require.Equal(t, 1, b.Live())

	out, err := p.Predict(context.Background(), makeSeries(60), 5, SamplingParams{Temperature: 1, TopP: 0.9, SampleCount: 2, Seed: 7})
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, per := range out {
		require.GreaterOrEqual(t, per.High, per.Low, "period %d", i)
		require.Greater(t, per.Close, 0.0)
		require.InDelta(t, max(0.6, 0.9-0.05*float64(i)), per.Confidence, 1e-9)
	}
}

func TestSimulated_SeedIsDeterministic(t *testing.T) {
	_, p := loadSimulated(t, 512)
	series := makeSeries(40)
	params := SamplingParams{Temperature: 1, TopP: 0.9, SampleCount: 1, Seed: 42}
	a, err := p.Predict(context.Background(), series, 3, params)
	require.NoError(t, err)
	b, err := p.Predict(context.Background(), series, 3, params)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSimulated_UnloadInvalidatesPredictor(t *testing.T) {
	b, p := loadSimulated(t, 512)
	require.NoError(t, b.Unload(p))
	require.Equal(t, 0, b.Live())
	// double unload is harmless
	require.NoError(t, b.Unload(p))
	require.Equal(t, 0, b.Live())
	_, err := p.Predict(context.Background(), makeSeries(10), 1, SamplingParams{})
	require.ErrorIs(t, err, ErrUnloaded)
}

func TestSimulated_LoadRequiresArtifacts(t *testing.T) {
	b := NewSimulated(zerolog.Nop())
	_, err := b.Load(context.Background(), LoadRequest{ContextLength: 10, Tokenizer: artifact.Artifact{Path: "/nope"}, Model: artifact.Artifact{Path: "/nope"}})
	require.Error(t, err)
	require.Equal(t, 0, b.Live())
}

func TestSimulated_CanceledContext(t *testing.T) {
	_, p := loadSimulated(t, 512)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Predict(ctx, makeSeries(10), 3, SamplingParams{})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestSidecar_LoadPredictUnload(t *testing.T) {
	var unloaded atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/load", func(w http.ResponseWriter, r *http.Request) {
		var req sidecarLoadRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sidecarLoadResponse{Handle: "h-" + req.Variant})
	})
	mux.HandleFunc("/v1/predict", func(w http.ResponseWriter, r *http.Request) {
		var req sidecarPredictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Handle != "h-kronos-mini" {
			http.Error(w, "bad handle", http.StatusBadRequest)
			return
		}
		out := sidecarPredictResponse{}
		for i := 0; i < req.PredLen; i++ {
			out.Periods = append(out.Periods, Period{Open: 1, High: 2, Low: 0.5, Close: 1.5, Confidence: 0.9})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/v1/unload", func(w http.ResponseWriter, r *http.Request) {
		unloaded.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := NewSidecar(srv.URL, "", 2*time.Second, time.Second, zerolog.Nop())
	p, err := b.Load(context.Background(), LoadRequest{VariantID: "kronos-mini", ContextLength: 2048})
	require.NoError(t, err)
	out, err := p.Predict(context.Background(), makeSeries(5), 4, SamplingParams{Temperature: 1, TopP: 0.9, SampleCount: 1})
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.NoError(t, b.Unload(p))
	require.True(t, unloaded.Load())
}

func TestSidecar_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, fmt.Sprintf("boom %s", r.URL.Path), http.StatusInternalServerError)
	}))
	defer srv.Close()
	b := NewSidecar(srv.URL, "k", time.Second, time.Second, zerolog.Nop())
	_, err := b.Load(context.Background(), LoadRequest{VariantID: "x"})
	require.ErrorContains(t, err, "500")
}
