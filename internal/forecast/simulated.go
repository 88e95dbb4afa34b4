package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"forecastd/internal/common/fsutil"
	"forecastd/pkg/types"
)

const (
	defaultVolatility = 0.02
	baseConfidence    = 0.9
	confidenceDecay   = 0.05
	minConfidence     = 0.6
)

// Simulated is a backend that calibrates a log-normal random walk on the
// input series. It stands in for the pretrained model where the real
// runtime is unavailable and keeps the full load/unload lifecycle.
type Simulated struct {
	log  zerolog.Logger
	live atomic.Int64
}

// NewSimulated constructs the simulated backend.
func NewSimulated(log zerolog.Logger) *Simulated {
	return &Simulated{log: log}
}

// Live reports the number of predictors loaded and not yet unloaded.
func (s *Simulated) Live() int { return int(s.live.Load()) }

func (s *Simulated) Load(ctx context.Context, req LoadRequest) (Predictor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ContextLength <= 0 {
		return nil, fmt.Errorf("invalid context length %d", req.ContextLength)
	}
	for _, p := range []string{req.Tokenizer.Path, req.Model.Path} {
		if p == "" || !fsutil.PathExists(p) {
			return nil, fmt.Errorf("artifact path %q not found", p)
		}
	}
	s.live.Add(1)
	s.log.Debug().Str("variant", req.VariantID).Int("context_length", req.ContextLength).Msg("simulated predictor loaded")
	return &simulatedPredictor{variant: req.VariantID, contextLength: req.ContextLength}, nil
}

func (s *Simulated) Unload(p Predictor) error {
	sp, ok := p.(*simulatedPredictor)
	if !ok {
		return fmt.Errorf("unexpected predictor type %T", p)
	}
	if sp.close() {
		s.live.Add(-1)
	}
	return nil
}

type simulatedPredictor struct {
	variant       string
	contextLength int

	mu     sync.RWMutex
	closed bool
}

func (p *simulatedPredictor) close() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

func (p *simulatedPredictor) Predict(ctx context.Context, series []types.Bar, horizon int, params SamplingParams) ([]Period, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrUnloaded
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if len(series) < 2 {
		return nil, errors.New("series needs at least two bars")
	}
	if len(series) > p.contextLength {
		series = series[len(series)-p.contextLength:]
	}

	drift, vol := calibrate(series)
	if params.Temperature > 0 {
		vol *= math.Sqrt(params.Temperature)
	}
	// Clip draws to the central top_p mass of the return distribution.
	bound := math.Inf(1)
	if params.TopP > 0 && params.TopP < 1 {
		bound = distuv.Normal{Mu: 0, Sigma: vol}.Quantile(0.5 + params.TopP/2)
	}
	samples := params.SampleCount
	if samples <= 0 {
		samples = 1
	}
	seed := params.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([]Period, horizon)
	for s := 0; s < samples; s++ {
		last := series[len(series)-1].Close
		for i := 0; i < horizon; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			gap := clip(rng.NormFloat64()*vol/2, bound)
			ret := clip(drift+rng.NormFloat64()*vol, bound)
			open := last * math.Exp(gap)
			cl := open * math.Exp(ret)
			high := math.Max(open, cl) * (1 + math.Abs(rng.NormFloat64()*vol/4))
			low := math.Min(open, cl) * (1 - math.Abs(rng.NormFloat64()*vol/4))
			out[i].Open += open / float64(samples)
			out[i].Close += cl / float64(samples)
			out[i].High += high / float64(samples)
			out[i].Low += low / float64(samples)
			last = cl
		}
	}
	for i := range out {
		out[i].Confidence = math.Max(minConfidence, baseConfidence-confidenceDecay*float64(i))
	}
	return out, nil
}

// calibrate estimates the per-period drift and volatility of log returns.
func calibrate(series []types.Bar) (drift, vol float64) {
	rets := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1].Close, series[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		rets = append(rets, math.Log(cur/prev))
	}
	if len(rets) < 2 {
		return 0, defaultVolatility
	}
	drift = stat.Mean(rets, nil)
	vol = stat.StdDev(rets, nil)
	if math.IsNaN(vol) || vol <= 0 {
		vol = defaultVolatility
	}
	return drift, vol
}

func clip(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
