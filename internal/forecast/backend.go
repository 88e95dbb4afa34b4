// Package forecast defines the opaque forecasting capability consumed by the
// model lifecycle manager, plus the backends that implement it.
package forecast

import (
	"context"
	"errors"

	"forecastd/internal/artifact"
	"forecastd/pkg/types"
)

// ErrUnloaded is returned by a predictor used after Unload.
var ErrUnloaded = errors.New("predictor unloaded")

// Period is one predicted period before dates are assigned.
type Period struct {
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Confidence float64 `json:"confidence"`
}

// SamplingParams controls stochastic decoding.
type SamplingParams struct {
	Temperature float64
	TopP        float64
	SampleCount int
	// Seed makes a prediction reproducible; zero picks one per call.
	Seed uint64
}

// LoadRequest carries everything a backend needs to build a predictor.
type LoadRequest struct {
	VariantID     string
	Tokenizer     artifact.Artifact
	Model         artifact.Artifact
	Device        string
	ContextLength int
}

// Predictor produces forecasts for an input series.
type Predictor interface {
	// Predict returns horizon periods following series. Implementations
	// must return when ctx is canceled.
	Predict(ctx context.Context, series []types.Bar, horizon int, params SamplingParams) ([]Period, error)
}

// Backend loads and unloads predictors.
type Backend interface {
	Load(ctx context.Context, req LoadRequest) (Predictor, error)
	// Unload releases everything held by p. p must not be used afterwards.
	Unload(p Predictor) error
}
