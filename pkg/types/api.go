package types

// PredictRequest represents a forecast request payload.
type PredictRequest struct {
	// Required instrument code.
	// example: 600000
	Code string `json:"code" example:"600000"`
	// Number of future periods to predict. Zero uses the server default.
	// example: 5
	Horizon int `json:"horizon,omitempty" example:"5"`
	// Optional date (YYYY-MM-DD) the forecast starts from. History on or after
	// this date is ignored.
	// example: 2024-01-02
	StartDate string `json:"start_date,omitempty" example:"2024-01-02"`
	// Optional number of calendar days of history fed to the model.
	// example: 60
	HistoryDays int `json:"history_days,omitempty" example:"60"`
}

// BatchPredictRequest asks for forecasts of several instruments at once.
type BatchPredictRequest struct {
	// Instrument codes.
	// example: ["600000","000001"]
	Codes []string `json:"codes" example:"600000,000001"`
	// example: 5
	Horizon int `json:"horizon,omitempty" example:"5"`
}

// BatchResult is the per-instrument outcome of a batch prediction.
type BatchResult struct {
	Code     string    `json:"code"`
	Success  bool      `json:"success"`
	Forecast *Forecast `json:"data,omitempty"`
	Error    string    `json:"error,omitempty"`
	Kind     string    `json:"kind,omitempty"`
}

// BatchPredictResponse wraps batch results in request order.
type BatchPredictResponse struct {
	Results []BatchResult `json:"results"`
}

// SwitchRequest selects a model variant.
type SwitchRequest struct {
	// example: kronos-base
	Variant string `json:"variant" example:"kronos-base"`
}

// SwitchResponse reports the outcome of a switch or reload.
type SwitchResponse struct {
	// Variant resident before the switch, empty if none.
	// example: kronos-small
	PreviousVariant string `json:"previous_variant" example:"kronos-small"`
	// Variant resident after the switch.
	// example: kronos-base
	Variant string `json:"variant" example:"kronos-base"`
	// True if any artifact had to be fetched from the remote source.
	// example: false
	DownloadOccurred bool `json:"download_occurred" example:"false"`
}

// AdmissionStatus summarizes inference admission.
type AdmissionStatus struct {
	// example: 10
	Capacity int `json:"capacity" example:"10"`
	// example: 2
	InUse int `json:"in_use" example:"2"`
	// example: 0
	Waiting int `json:"waiting" example:"0"`
	// example: 7
	Peak int `json:"peak" example:"7"`
	// example: 0
	Timeouts uint64 `json:"timeouts_total" example:"0"`
}

// StatusResponse is returned by GET /model/status.
type StatusResponse struct {
	// Lifecycle state: unloaded, loading, ready, switching, failed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Variant the state refers to (target variant while loading/switching).
	// example: kronos-small
	VariantID string `json:"variant_id,omitempty" example:"kronos-small"`
	// Variant being replaced while switching.
	FromVariant string `json:"from_variant,omitempty"`
	// Failure reason when state is failed.
	Reason string `json:"reason,omitempty"`
	// Whether loading the resident variant fetched remote artifacts.
	DownloadOccurred *bool `json:"download_occurred,omitempty"`
	// Per-artifact download flags of the resident variant.
	TokenizerDownloaded bool `json:"tokenizer_downloaded,omitempty"`
	ModelDownloaded     bool `json:"model_downloaded,omitempty"`
	// Load time of the resident variant (unix seconds).
	LoadedAt int64 `json:"loaded_at_unix,omitempty"`
	// Outstanding predictor borrows.
	// example: 1
	Borrows int `json:"borrows" example:"1"`
	// Total completed loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Inference admission counters.
	Admission AdmissionStatus `json:"admission"`
	// Number of cached forecasts.
	// example: 12
	CacheEntries int `json:"cache_entries" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// VariantStatus is one catalog entry plus runtime availability.
type VariantStatus struct {
	Variant
	// True if both artifacts resolve from the local cache.
	LocallyAvailable bool `json:"locally_available"`
	// True if this is the resident variant.
	Current bool `json:"current"`
}

// VariantsResponse wraps GET /model/variants.
type VariantsResponse struct {
	Variants []VariantStatus `json:"variants"`
}

// Event is a lifecycle event as exposed over HTTP.
type Event struct {
	Name      string         `json:"name"`
	VariantID string         `json:"variant_id,omitempty"`
	At        int64          `json:"at_unix"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// EventsResponse wraps GET /model/events, newest first.
type EventsResponse struct {
	Events []Event `json:"events"`
}

// HistoryRecord is a previously served forecast.
type HistoryRecord struct {
	ID        int64    `json:"id"`
	Code      string   `json:"code"`
	Variant   string   `json:"variant"`
	Horizon   int      `json:"horizon"`
	StartDate string   `json:"start_date,omitempty"`
	CreatedAt int64    `json:"created_at_unix"`
	Forecast  Forecast `json:"forecast"`
}

// HistoryResponse wraps GET /forecasts/{code}/history.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// AckResponse acknowledges an operation without payload.
type AckResponse struct {
	// example: true
	OK bool `json:"ok" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Machine-readable error kind.
	// example: invalid_request
	Kind string `json:"kind,omitempty" example:"invalid_request"`
	// True if the request may succeed when retried shortly.
	// example: false
	Retryable bool `json:"retryable" example:"false"`
}

// QuoteSummary describes the latest trading session of an instrument.
type QuoteSummary struct {
	Code string `json:"code" example:"600000"`
	// example: 2024-01-05
	Date      string  `json:"date" example:"2024-01-05"`
	Open      float64 `json:"open" example:"10.12"`
	High      float64 `json:"high" example:"10.40"`
	Low       float64 `json:"low" example:"10.01"`
	Close     float64 `json:"close" example:"10.33"`
	Volume    float64 `json:"volume" example:"1250000"`
	PrevClose float64 `json:"prev_close,omitempty" example:"10.20"`
	Change    float64 `json:"change" example:"0.13"`
	// Percent change against the previous close.
	ChangePct float64 `json:"change_pct" example:"1.27"`
}

// QuoteHistoryResponse wraps GET /quotes/{code}/history.
type QuoteHistoryResponse struct {
	Code string `json:"code" example:"600000"`
	Bars []Bar  `json:"history"`
}

// ActualQuotesResponse wraps GET /quotes/{code}/actual: realized bars to
// compare against a forecast.
type ActualQuotesResponse struct {
	Code      string `json:"code" example:"600000"`
	StartDate string `json:"start_date" example:"2024-01-08"`
	EndDate   string `json:"end_date" example:"2024-01-12"`
	Bars      []Bar  `json:"actual"`
}
