package manager

import "github.com/prometheus/client_golang/prometheus"

var allStates = []State{StateUnloaded, StateLoading, StateReady, StateSwitching, StateFailed}

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecastd",
			Subsystem: "model",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by target state",
		},
		[]string{"state"},
	)

	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "forecastd",
			Subsystem: "model",
			Name:      "state",
			Help:      "1 for the current lifecycle state, 0 otherwise",
		},
		[]string{"state"},
	)

	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forecastd",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of variant loads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"variant", "outcome"},
	)

	borrowsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "forecastd",
			Subsystem: "model",
			Name:      "borrows",
			Help:      "Outstanding model borrows",
		},
	)
)

func init() {
	prometheus.MustRegister(transitionsTotal, stateGauge, loadDuration, borrowsGauge)
}

func setStateMetric(cur State) {
	for _, s := range allStates {
		v := 0.0
		if s == cur {
			v = 1
		}
		stateGauge.WithLabelValues(string(s)).Set(v)
	}
}
