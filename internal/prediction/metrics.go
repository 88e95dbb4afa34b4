package prediction

import "github.com/prometheus/client_golang/prometheus"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecastd",
			Subsystem: "prediction",
			Name:      "requests_total",
			Help:      "Forecast requests by outcome",
		},
		[]string{"outcome"},
	)

	predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forecastd",
			Subsystem: "prediction",
			Name:      "duration_seconds",
			Help:      "End-to-end forecast latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(predictionsTotal, predictionDuration)
}
