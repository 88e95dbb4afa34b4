package admission

import "github.com/prometheus/client_golang/prometheus"

var (
	slotsCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecastd",
		Subsystem: "admission",
		Name:      "slots",
		Help:      "Configured admission slots",
	})

	inUseGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecastd",
		Subsystem: "admission",
		Name:      "slots_in_use",
		Help:      "Admission slots currently held",
	})

	waitingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forecastd",
		Subsystem: "admission",
		Name:      "waiting",
		Help:      "Requests waiting for an admission slot",
	})

	waitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forecastd",
		Subsystem: "admission",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for an admission slot",
		Buckets:   prometheus.DefBuckets,
	})

	timeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecastd",
			Subsystem: "admission",
			Name:      "timeouts_total",
			Help:      "Requests that hit the admission timeout",
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(slotsCapacity, inUseGauge, waitingGauge, waitDuration, timeoutsTotal)
}
