// Package prediction orchestrates a forecast request: cache lookup, quote
// history, admission-bounded inference on the borrowed model, and result
// normalization.
package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"forecastd/internal/admission"
	"forecastd/internal/cache"
	"forecastd/internal/forecast"
	"forecastd/internal/manager"
	"forecastd/internal/quotes"
	"forecastd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultHorizon     = 5
	DefaultMaxHorizon  = 10
	DefaultHistoryDays = 60
	DefaultMinHistory  = 30
	DefaultMaxBatch    = 50
	maxHistoryDays     = 5000
	batchParallelism   = 4
	recordTimeout      = 2 * time.Second
)

// Models is the part of the lifecycle manager the service needs.
type Models interface {
	State() manager.LifecycleState
	CurrentVariant() (types.Variant, bool)
	BorrowCurrent(ctx context.Context) (*manager.ModelHandle, func(), error)
}

// Admitter runs work under an admission slot.
type Admitter interface {
	Do(ctx context.Context, work func(context.Context) error) error
}

// HistoryStore records served forecasts.
type HistoryStore interface {
	Record(ctx context.Context, f types.Forecast) error
	Recent(ctx context.Context, code string, limit int) ([]types.HistoryRecord, error)
}

// Config wires the service.
type Config struct {
	Models   Models
	Admitter Admitter
	Cache    cache.Cache
	Quotes   quotes.Provider
	// History is optional.
	History HistoryStore

	DefaultHorizon int
	MaxHorizon     int
	HistoryDays    int
	MinHistory     int
	MaxBatch       int
	Sampling       forecast.SamplingParams
	Logger         *zerolog.Logger
	Now            func() time.Time
}

// Request is one forecast request.
type Request struct {
	Code        string
	Horizon     int
	StartDate   string
	HistoryDays int
}

// Result is a served forecast.
type Result struct {
	Forecast types.Forecast
	CacheHit bool
}

// Service is the prediction service.
type Service struct {
	cfg Config
	log zerolog.Logger
}

// New applies defaults to cfg.
func New(cfg Config) *Service {
	if cfg.DefaultHorizon <= 0 {
		cfg.DefaultHorizon = DefaultHorizon
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = DefaultMaxHorizon
	}
	if cfg.DefaultHorizon > cfg.MaxHorizon {
		cfg.DefaultHorizon = cfg.MaxHorizon
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = DefaultMinHistory
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Sampling.Temperature <= 0 {
		cfg.Sampling.Temperature = 1.0
	}
	if cfg.Sampling.TopP <= 0 {
		cfg.Sampling.TopP = 0.9
	}
	if cfg.Sampling.SampleCount <= 0 {
		cfg.Sampling.SampleCount = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{cfg: cfg, log: zerolog.Nop()}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	}
	return s
}

type validated struct {
	code        string
	horizon     int
	startDate   string
	start       time.Time
	historyDays int
}

func (s *Service) validate(req Request) (validated, error) {
	v := validated{code: req.Code, horizon: req.Horizon, startDate: req.StartDate, historyDays: req.HistoryDays}
	if v.code == "" {
		return v, invalidf("code is required")
	}
	if !quotes.ValidCode(v.code) {
		return v, invalidf("malformed code %q", v.code)
	}
	if v.horizon == 0 {
		v.horizon = s.cfg.DefaultHorizon
	}
	if v.horizon < 1 || v.horizon > s.cfg.MaxHorizon {
		return v, invalidf("horizon must be between 1 and %d", s.cfg.MaxHorizon)
	}
	if v.startDate != "" {
		t, err := time.Parse(quotes.DateLayout, v.startDate)
		if err != nil {
			return v, invalidf("start_date must be YYYY-MM-DD")
		}
		v.start = t
	}
	if v.historyDays == 0 {
		v.historyDays = s.cfg.HistoryDays
	}
	if v.historyDays < 1 || v.historyDays > maxHistoryDays {
		return v, invalidf("history_days must be between 1 and %d", maxHistoryDays)
	}
	return v, nil
}

func (s *Service) cacheKey(v validated, variantID string) string {
	return cache.Key{Code: v.code, Horizon: v.horizon, StartDate: v.startDate, VariantID: variantID, HistoryDays: v.historyDays}.String()
}

// Predict serves one forecast. Cache hits consume no admission slot and
// fetch no quotes.
func (s *Service) Predict(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := s.predict(ctx, req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = Kind(err)
	case res.CacheHit:
		outcome = "cache_hit"
	}
	predictionsTotal.WithLabelValues(outcome).Inc()
	predictionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) predict(ctx context.Context, req Request) (Result, error) {
	v, err := s.validate(req)
	if err != nil {
		return Result{}, err
	}
	cur, ok := s.readyVariant()
	if !ok {
		return Result{}, &manager.ModelUnavailableError{State: s.cfg.Models.State().State}
	}
	if f, hit := s.cfg.Cache.Get(ctx, s.cacheKey(v, cur.ID)); hit {
		return Result{Forecast: f, CacheHit: true}, nil
	}

	series, err := s.history(ctx, v)
	if err != nil {
		return Result{}, err
	}
	if len(series) < s.cfg.MinHistory {
		return Result{}, &InsufficientHistoryError{Code: v.code, Have: len(series), Need: s.cfg.MinHistory}
	}
	// Reject oversize input before taking a slot.
	cur, ok = s.readyVariant()
	if !ok {
		return Result{}, &manager.ModelUnavailableError{State: s.cfg.Models.State().State}
	}
	if len(series) > cur.ContextLength {
		return Result{}, &InputTooLongError{Variant: cur.ID, Length: len(series), Max: cur.ContextLength}
	}

	var (
		periods []forecast.Period
		used    types.Variant
	)
	err = s.cfg.Admitter.Do(ctx, func(ctx context.Context) error {
		h, release, err := s.cfg.Models.BorrowCurrent(ctx)
		defer release()
		if err != nil {
			if manager.IsModelUnavailable(err) {
				return &ServiceUnavailableError{Err: err}
			}
			return err
		}
		// The variant may have been switched since the pre-check.
		if len(series) > h.Variant.ContextLength {
			return &InputTooLongError{Variant: h.Variant.ID, Length: len(series), Max: h.Variant.ContextLength}
		}
		out, err := h.Predictor.Predict(ctx, series, v.horizon, s.cfg.Sampling)
		if err != nil {
			return fmt.Errorf("predict %s: %w", v.code, err)
		}
		periods, used = out, h.Variant
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	points, err := normalize(periods, v.horizon, firstForecastDate(series, v))
	if err != nil {
		return Result{}, err
	}
	f := types.Forecast{
		Code:        v.code,
		Variant:     used.ID,
		Horizon:     v.horizon,
		StartDate:   v.startDate,
		GeneratedAt: s.cfg.Now().Unix(),
		Points:      points,
	}
	s.cfg.Cache.Put(ctx, s.cacheKey(v, used.ID), f)
	s.record(ctx, f)
	return Result{Forecast: f}, nil
}

func (s *Service) readyVariant() (types.Variant, bool) {
	if s.cfg.Models.State().State != manager.StateReady {
		return types.Variant{}, false
	}
	return s.cfg.Models.CurrentVariant()
}

// history returns the bars strictly before the start date, most recent
// historyDays of them.
func (s *Service) history(ctx context.Context, v validated) ([]types.Bar, error) {
	if v.startDate != "" {
		if bp, ok := s.cfg.Quotes.(quotes.BeforeProvider); ok {
			return bp.FetchHistoryBefore(ctx, v.code, v.startDate, v.historyDays)
		}
	}
	bars, err := s.cfg.Quotes.FetchHistory(ctx, v.code, v.historyDays)
	if err != nil {
		return nil, err
	}
	if v.startDate == "" {
		return bars, nil
	}
	out := bars[:0:0]
	for _, b := range bars {
		if b.Date < v.startDate {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, f types.Forecast) {
	if s.cfg.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.cfg.History.Record(ctx, f); err != nil {
		s.log.Warn().Err(err).Str("code", f.Code).Msg("record forecast history")
	}
}

// firstForecastDate is the start date when it is a business day, otherwise
// the next business day after it or after the last bar.
func firstForecastDate(series []types.Bar, v validated) time.Time {
	if !v.start.IsZero() {
		if wd := v.start.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return v.start
		}
		return quotes.NextBusinessDay(v.start)
	}
	last, err := time.Parse(quotes.DateLayout, series[len(series)-1].Date)
	if err != nil {
		last = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return quotes.NextBusinessDay(last)
}

func normalize(periods []forecast.Period, horizon int, first time.Time) ([]types.ForecastPoint, error) {
	if len(periods) < horizon {
		return nil, fmt.Errorf("predictor returned %d periods, want %d", len(periods), horizon)
	}
	out := make([]types.ForecastPoint, horizon)
	d := first
	for i := 0; i < horizon; i++ {
		p := periods[i]
		for _, x := range []float64{p.Open, p.High, p.Low, p.Close, p.Confidence} {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("predictor returned non-finite value in period %d", i)
			}
		}
		open, cl := round2(p.Open), round2(p.Close)
		high := math.Max(round2(p.High), math.Max(open, cl))
		low := math.Min(round2(p.Low), math.Min(open, cl))
		out[i] = types.ForecastPoint{
			Date:       d.Format(quotes.DateLayout),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      cl,
			Confidence: round2(math.Min(1, math.Max(0, p.Confidence))),
		}
		d = quotes.NextBusinessDay(d)
	}
	return out, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// PredictBatch predicts each code independently; one failure never fails
// the batch. Results keep request order.
func (s *Service) PredictBatch(ctx context.Context, codes []string, horizon int) ([]types.BatchResult, error) {
	if len(codes) == 0 {
		return nil, invalidf("codes must not be empty")
	}
	if len(codes) > s.cfg.MaxBatch {
		return nil, invalidf("at most %d codes per batch", s.cfg.MaxBatch)
	}
	out := make([]types.BatchResult, len(codes))
	var g errgroup.Group
	g.SetLimit(batchParallelism)
	for i, code := range codes {
		g.Go(func() error {
			res, err := s.Predict(ctx, Request{Code: code, Horizon: horizon})
			if err != nil {
				out[i] = types.BatchResult{Code: code, Error: err.Error(), Kind: Kind(err)}
				return nil
			}
			f := res.Forecast
			out[i] = types.BatchResult{Code: code, Success: true, Forecast: &f}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// ClearCache drops every cached forecast. The model is untouched.
func (s *Service) ClearCache(ctx context.Context) {
	s.cfg.Cache.InvalidateAll(ctx)
	s.log.Info().Msg("forecast cache cleared")
}

// CacheLen reports live cache entries.
func (s *Service) CacheLen() int { return s.cfg.Cache.Len() }

// History returns recently served forecasts for code, newest first.
func (s *Service) History(ctx context.Context, code string, limit int) ([]types.HistoryRecord, error) {
	if !quotes.ValidCode(code) {
		return nil, invalidf("malformed code %q", code)
	}
	if s.cfg.History == nil {
		return []types.HistoryRecord{}, nil
	}
	return s.cfg.History.Recent(ctx, code, limit)
}

// AdmissionStatus converts controller stats for the status endpoint.
func AdmissionStatus(st admission.Stats) types.AdmissionStatus {
	return types.AdmissionStatus{
		Capacity: st.Capacity,
		InUse:    st.InUse,
		Waiting:  st.Waiting,
		Peak:     st.Peak,
		Timeouts: st.Timeouts,
	}
}
