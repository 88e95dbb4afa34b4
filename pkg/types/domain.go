package types

// Variant describes one interchangeable configuration of the forecasting model.
type Variant struct {
	// Stable identifier for the variant.
	// example: kronos-small
	ID string `json:"id" yaml:"id" toml:"id" example:"kronos-small"`
	// Human-friendly name.
	// example: Kronos-small
	DisplayName string `json:"name" yaml:"name" toml:"name" example:"Kronos-small"`
	// Parameter count as published by the model authors.
	// example: 24.7M
	ParamCount string `json:"params" yaml:"params" toml:"params" example:"24.7M"`
	// Maximum number of bars the model accepts as input.
	// example: 512
	ContextLength int `json:"context_length" yaml:"context_length" toml:"context_length" example:"512"`
	// Local path or remote repository reference of the model weights.
	// example: NeoQuasar/Kronos-small
	ModelLocator string `json:"model_locator" yaml:"model_locator" toml:"model_locator" example:"NeoQuasar/Kronos-small"`
	// Local path or remote repository reference of the tokenizer.
	// example: NeoQuasar/Kronos-Tokenizer-base
	TokenizerLocator string `json:"tokenizer_locator" yaml:"tokenizer_locator" toml:"tokenizer_locator" example:"NeoQuasar/Kronos-Tokenizer-base"`
	// Informational accuracy estimate in [0,1].
	// example: 0.85
	EstimatedAccuracy float64 `json:"estimated_accuracy" yaml:"estimated_accuracy" toml:"estimated_accuracy" example:"0.85"`
	// Optional free-form description.
	Description string `json:"description,omitempty" yaml:"description" toml:"description"`
}

// Bar is one historical OHLCV record.
type Bar struct {
	// Trading date (YYYY-MM-DD).
	// example: 2024-01-02
	Date   string  `json:"date" example:"2024-01-02"`
	Open   float64 `json:"open" example:"10.12"`
	High   float64 `json:"high" example:"10.40"`
	Low    float64 `json:"low" example:"10.01"`
	Close  float64 `json:"close" example:"10.33"`
	Volume float64 `json:"volume" example:"1250000"`
}

// ForecastPoint is one predicted trading period.
type ForecastPoint struct {
	// Trading date (YYYY-MM-DD).
	// example: 2024-01-03
	Date  string  `json:"date" example:"2024-01-03"`
	Open  float64 `json:"open" example:"10.35"`
	High  float64 `json:"high" example:"10.52"`
	Low   float64 `json:"low" example:"10.21"`
	Close float64 `json:"close" example:"10.44"`
	// Model confidence in [0,1].
	// example: 0.9
	Confidence float64 `json:"confidence" example:"0.9"`
}

// Forecast is a completed prediction for one instrument.
type Forecast struct {
	// Instrument code.
	// example: 600000
	Code string `json:"code" example:"600000"`
	// Variant that produced the forecast.
	// example: kronos-small
	Variant string `json:"variant" example:"kronos-small"`
	// Number of predicted periods.
	// example: 5
	Horizon int `json:"horizon" example:"5"`
	// Requested start date, if any.
	// example: 2024-01-02
	StartDate string `json:"start_date,omitempty" example:"2024-01-02"`
	// Generation time (unix seconds).
	// example: 1700000000
	GeneratedAt int64 `json:"generated_at_unix" example:"1700000000"`
	// Predicted periods ordered by increasing date.
	Points []ForecastPoint `json:"predictions"`
}
