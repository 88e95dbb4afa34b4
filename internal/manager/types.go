package manager

import (
	"time"

	"forecastd/internal/artifact"
	"forecastd/internal/forecast"
	"forecastd/pkg/types"
)

// State is the lifecycle phase of the resident model.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateSwitching State = "switching"
	StateFailed    State = "failed"
)

// LifecycleState is a snapshot of the manager. Variant is the target of
// Loading and Switching, the resident variant in Ready and the variant that
// failed in Failed.
type LifecycleState struct {
	State   State
	Variant string
	From    string
	Reason  string
}

// Downloads records which artifacts had to be fetched remotely.
type Downloads struct {
	Tokenizer bool
	Model     bool
}

// Any reports whether at least one artifact was downloaded.
func (d Downloads) Any() bool { return d.Tokenizer || d.Model }

// ModelHandle is the loaded model. It is only reachable through
// BorrowCurrent and must not be retained past release.
type ModelHandle struct {
	Variant   types.Variant
	LoadedAt  time.Time
	Downloads Downloads
	Tokenizer artifact.Artifact
	Predictor forecast.Predictor
}

// SwitchResult describes a completed switch.
type SwitchResult struct {
	PreviousVariant  string
	Variant          string
	DownloadOccurred bool
}
