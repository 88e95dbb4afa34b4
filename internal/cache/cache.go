// Package cache stores recently computed forecasts for a short TTL.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"

	"forecastd/pkg/types"
)

// DefaultTTL is how long a forecast stays valid.
const DefaultTTL = 5 * time.Minute

// Cache is a forecast result cache. Implementations are safe for concurrent
// use; concurrent puts for one key are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, key string) (types.Forecast, bool)
	Put(ctx context.Context, key string, f types.Forecast)
	InvalidateAll(ctx context.Context)
	Len() int
}

// Key identifies a forecast request. Two requests with equal keys on the
// same variant produce interchangeable forecasts within the TTL.
type Key struct {
	Code        string
	Horizon     int
	StartDate   string
	VariantID   string
	HistoryDays int
}

// String returns a compact hash of the key.
func (k Key) String() string {
	d := xxhash.New()
	_, _ = d.WriteString(k.Code)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(k.Horizon))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(k.StartDate)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(k.VariantID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(k.HistoryDays))
	return strconv.FormatUint(d.Sum64(), 16)
}

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecastd",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Forecast cache lookups by result",
		},
		[]string{"backend", "result"},
	)

	fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forecastd",
		Subsystem: "cache",
		Name:      "redis_fallbacks_total",
		Help:      "Redis operations served by the in-memory fallback",
	})
)

func init() {
	prometheus.MustRegister(lookupsTotal, fallbacksTotal)
}

func observe(backend string, hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	lookupsTotal.WithLabelValues(backend, r).Inc()
}
