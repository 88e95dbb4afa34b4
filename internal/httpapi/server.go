package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forecastd/internal/admission"
	"forecastd/internal/manager"
	"forecastd/internal/prediction"
	"forecastd/internal/quotes"
	"forecastd/pkg/types"
)

// Models is the lifecycle surface the API needs from the model manager.
type Models interface {
	Ready() bool
	Status() types.StatusResponse
	Variants() []types.VariantStatus
	SwitchTo(ctx context.Context, id string) (manager.SwitchResult, error)
	Reload(ctx context.Context) (manager.SwitchResult, error)
	Unload(ctx context.Context) error
}

// Predictions is the forecasting surface.
type Predictions interface {
	Predict(ctx context.Context, req prediction.Request) (prediction.Result, error)
	PredictBatch(ctx context.Context, codes []string, horizon int) ([]types.BatchResult, error)
	ClearCache(ctx context.Context)
	CacheLen() int
	History(ctx context.Context, code string, limit int) ([]types.HistoryRecord, error)
}

// Quotes is the historical quote source behind the /quotes endpoints.
type Quotes interface {
	FetchHistory(ctx context.Context, code string, days int) ([]types.Bar, error)
}

// EventSource exposes recently published lifecycle events, oldest first.
type EventSource interface {
	Recent() []manager.Event
}

// AdmissionStats exposes admission counters for the status endpoint.
type AdmissionStats interface {
	Stats() admission.Stats
}

// HealthCheck is a named dependency check run by /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires the API to its services. Events, Admission, Quotes and Checks
// are optional.
type Deps struct {
	Models      Models
	Predictions Predictions
	Events      EventSource
	Admission   AdmissionStats
	Quotes      Quotes
	Checks      []HealthCheck
}

type server struct {
	Deps
}

// NewMux builds the HTTP router.
func NewMux(d Deps) http.Handler {
	s := &server{Deps: d}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Cache", "Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/model", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/variants", s.variants)
		r.Get("/events", s.events)
		r.Post("/switch", s.switchModel)
		r.Post("/reload", s.reload)
		r.Post("/unload", s.unload)
	})
	r.Post("/predict", s.predict)
	r.Post("/predict/batch", s.predictBatch)
	r.Delete("/cache", s.clearCache)
	r.Get("/forecasts/{code}/history", s.history)
	if s.Quotes != nil {
		r.Get("/quotes/{code}", s.quoteSummary)
		r.Get("/quotes/{code}/history", s.quoteHistory)
		r.Get("/quotes/{code}/actual", s.quoteActual)
	}

	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// clientGone reports whether the request ended because the client left or
// the server is shutting down. No response is written in that case.
func clientGone(r *http.Request) bool {
	return r.Context().Err() != nil || serverBaseCtx.Err() != nil
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) readyz(w http.ResponseWriter, r *http.Request) {
	if !s.Models.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(s.Models.Status().State))
		return
	}
	for _, c := range s.Checks {
		if err := c.Check(r.Context()); err != nil {
			zlog.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(c.Name + ": " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// status godoc
// @Summary      Model status
// @Description  Lifecycle state, resident variant, admission and cache counters.
// @Tags         model
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /model/status [get]
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	st := s.Models.Status()
	if s.Admission != nil {
		st.Admission = prediction.AdmissionStatus(s.Admission.Stats())
	}
	st.CacheEntries = s.Predictions.CacheLen()
	writeJSON(w, http.StatusOK, st)
}

// variants godoc
// @Summary      List model variants
// @Tags         model
// @Produce      json
// @Success      200  {object}  types.VariantsResponse
// @Router       /model/variants [get]
func (s *server) variants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.VariantsResponse{Variants: s.Models.Variants()})
}

// events godoc
// @Summary      Recent lifecycle events, newest first
// @Tags         model
// @Produce      json
// @Param        limit  query  int  false  "maximum events returned"
// @Success      200  {object}  types.EventsResponse
// @Router       /model/events [get]
func (s *server) events(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	out := types.EventsResponse{Events: []types.Event{}}
	if s.Events != nil {
		recent := s.Events.Recent()
		for i := len(recent) - 1; i >= 0; i-- {
			if limit > 0 && len(out.Events) == limit {
				break
			}
			e := recent[i]
			out.Events = append(out.Events, types.Event{
				Name:      e.Name,
				VariantID: e.VariantID,
				At:        e.At.Unix(),
				Fields:    e.Fields,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func switchResponse(res manager.SwitchResult) types.SwitchResponse {
	return types.SwitchResponse{
		PreviousVariant:  res.PreviousVariant,
		Variant:          res.Variant,
		DownloadOccurred: res.DownloadOccurred,
	}
}

// switchModel godoc
// @Summary      Switch the resident variant
// @Description  Blocks until the new variant is ready or the load failed.
// @Tags         model
// @Accept       json
// @Produce      json
// @Param        body  body  types.SwitchRequest  true  "target variant"
// @Success      200  {object}  types.SwitchResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /model/switch [post]
func (s *server) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Variant) == "" {
		writeJSONError(w, http.StatusBadRequest, "variant is required")
		return
	}
	rl := startLog(r, "switch")
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.Models.SwitchTo(ctx, req.Variant)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, switchResponse(res))
	rl.end(http.StatusOK, nil)
}

// reload godoc
// @Summary      Reload the current variant
// @Tags         model
// @Produce      json
// @Success      200  {object}  types.SwitchResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /model/reload [post]
func (s *server) reload(w http.ResponseWriter, r *http.Request) {
	rl := startLog(r, "reload")
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.Models.Reload(ctx)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, switchResponse(res))
	rl.end(http.StatusOK, nil)
}

// unload godoc
// @Summary      Unload the resident model
// @Tags         model
// @Produce      json
// @Success      200  {object}  types.AckResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /model/unload [post]
func (s *server) unload(w http.ResponseWriter, r *http.Request) {
	rl := startLog(r, "unload")
	if err := s.Models.Unload(r.Context()); err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, types.AckResponse{OK: true})
	rl.end(http.StatusOK, nil)
}

// predict godoc
// @Summary      Forecast one instrument
// @Description  X-Cache reports whether the forecast was served from cache.
// @Tags         predict
// @Accept       json
// @Produce      json
// @Param        body  body  types.PredictRequest  true  "forecast request"
// @Success      200  {object}  types.Forecast
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      422  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Failure      504  {object}  types.ErrorResponse
// @Router       /predict [post]
func (s *server) predict(w http.ResponseWriter, r *http.Request) {
	var req types.PredictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rl := startLog(r, "predict")
	rl.debug().Str("code", req.Code).Int("horizon", req.Horizon).Str("start_date", req.StartDate).Msg("predict request")
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.Predictions.Predict(ctx, prediction.Request{
		Code:        req.Code,
		Horizon:     req.Horizon,
		StartDate:   req.StartDate,
		HistoryDays: req.HistoryDays,
	})
	if err != nil {
		if clientGone(r) {
			rl.end(499, err)
			return
		}
		rl.end(writeError(w, err), err)
		return
	}
	if res.CacheHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, res.Forecast)
	rl.end(http.StatusOK, nil)
}

// predictBatch godoc
// @Summary      Forecast several instruments
// @Description  Per-code failures are reported in place and never fail the batch.
// @Tags         predict
// @Accept       json
// @Produce      json
// @Param        body  body  types.BatchPredictRequest  true  "codes"
// @Success      200  {object}  types.BatchPredictResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /predict/batch [post]
func (s *server) predictBatch(w http.ResponseWriter, r *http.Request) {
	var req types.BatchPredictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rl := startLog(r, "predict_batch")
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	results, err := s.Predictions.PredictBatch(ctx, req.Codes, req.Horizon)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, types.BatchPredictResponse{Results: results})
	rl.end(http.StatusOK, nil)
}

// clearCache godoc
// @Summary      Drop every cached forecast
// @Tags         predict
// @Produce      json
// @Success      200  {object}  types.AckResponse
// @Router       /cache [delete]
func (s *server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.Predictions.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, types.AckResponse{OK: true})
}

// history godoc
// @Summary      Recently served forecasts for an instrument
// @Tags         predict
// @Produce      json
// @Param        code   path   string  true   "instrument code"
// @Param        limit  query  int     false  "maximum records (default 20)"
// @Success      200  {object}  types.HistoryResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /forecasts/{code}/history [get]
func (s *server) history(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	recs, err := s.Predictions.History(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []types.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{Records: recs})
}

// queryLimit parses the optional non-negative ?limit parameter.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// quoteSummary godoc
// @Summary      Latest session of an instrument
// @Tags         quotes
// @Produce      json
// @Param        code  path  string  true  "instrument code"
// @Success      200  {object}  types.QuoteSummary
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /quotes/{code} [get]
func (s *server) quoteSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := quotes.Summary(r.Context(), s.Quotes, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// quoteHistory godoc
// @Summary      Recent daily bars of an instrument
// @Tags         quotes
// @Produce      json
// @Param        code  path   string  true   "instrument code"
// @Param        days  query  int     false  "number of bars, 1-365 (default 30)"
// @Success      200  {object}  types.QuoteHistoryResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /quotes/{code}/history [get]
func (s *server) quoteHistory(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	code := chi.URLParam(r, "code")
	bars, err := quotes.History(r.Context(), s.Quotes, code, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.QuoteHistoryResponse{Code: code, Bars: bars})
}

// quoteActual godoc
// @Summary      Realized bars in a date range
// @Description  Bars dated from start_date to end_date inclusive, for comparing against a forecast.
// @Tags         quotes
// @Produce      json
// @Param        code        path   string  true  "instrument code"
// @Param        start_date  query  string  true  "first date (YYYY-MM-DD)"
// @Param        end_date    query  string  true  "last date (YYYY-MM-DD)"
// @Success      200  {object}  types.ActualQuotesResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /quotes/{code}/actual [get]
func (s *server) quoteActual(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, start, end := chi.URLParam(r, "code"), q.Get("start_date"), q.Get("end_date")
	bars, err := quotes.Range(r.Context(), s.Quotes, code, start, end, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ActualQuotesResponse{Code: code, StartDate: start, EndDate: end, Bars: bars})
}
