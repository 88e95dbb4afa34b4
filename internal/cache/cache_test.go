package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"forecastd/pkg/types"
)

func sampleForecast(code string) types.Forecast {
	return types.Forecast{
		Code:    code,
		Variant: "kronos-small",
		Horizon: 1,
		Points:  []types.ForecastPoint{{Date: "2024-01-03", Open: 1, High: 2, Low: 0.5, Close: 1.5, Confidence: 0.9}},
	}
}

func TestKey_DistinguishesEveryField(t *testing.T) {
	base := Key{Code: "600000", Horizon: 5, StartDate: "2024-01-02", VariantID: "kronos-small", HistoryDays: 60}
	require.Equal(t, base.String(), base.String())
	variants := []Key{base, base, base, base, base}
	variants[0].Code = "600001"
	variants[1].Horizon = 6
	variants[2].StartDate = ""
	variants[3].VariantID = "kronos-base"
	variants[4].HistoryDays = 90
	seen := map[string]bool{base.String(): true}
	for _, k := range variants {
		require.False(t, seen[k.String()], "collision for %+v", k)
		seen[k.String()] = true
	}
}

func TestMemory_PutGetOverwrite(t *testing.T) {
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	ctx := context.Background()

	_, ok := m.Get(ctx, "k")
	require.False(t, ok)
	m.Put(ctx, "k", sampleForecast("a"))
	m.Put(ctx, "k", sampleForecast("b"))
	f, ok := m.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "b", f.Code)
	require.Equal(t, 1, m.Len())
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Put(ctx, "k", sampleForecast("a"))
	now = now.Add(59 * time.Second)
	_, ok := m.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = m.Get(ctx, "k")
	require.False(t, ok, "entry must expire at exactly ttl")
	require.Equal(t, 0, m.Len())
}

func TestMemory_PutEvictsExpiredAndSweep(t *testing.T) {
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Put(ctx, "a", sampleForecast("a"))
	m.Put(ctx, "b", sampleForecast("b"))
	now = now.Add(2 * time.Minute)
	m.Put(ctx, "c", sampleForecast("c"))
	m.mu.RLock()
	require.Len(t, m.entries, 1)
	m.mu.RUnlock()

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, m.Sweep())
}

func TestMemory_BackgroundSweeper(t *testing.T) {
	m := NewMemory(10*time.Millisecond, 5*time.Millisecond)
	defer m.Close()
	m.Put(context.Background(), "k", sampleForecast("a"))
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.entries) == 0
	}, time.Second, 5*time.Millisecond)
	m.Close()
}

func TestMemory_InvalidateAllAndConcurrentUse(t *testing.T) {
	m := NewMemory(time.Minute, 0)
	defer m.Close()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := Key{Code: "c", Horizon: i % 4}.String()
			m.Put(ctx, k, sampleForecast("c"))
			_, _ = m.Get(ctx, k)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 4, m.Len())
	m.InvalidateAll(ctx)
	require.Equal(t, 0, m.Len())
}

func TestRedis_FallsBackToMemoryWhenUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	r := newRedis(rdb, RedisConfig{TTL: time.Minute})
	defer r.Close()
	ctx := context.Background()

	r.Put(ctx, "k", sampleForecast("a"))
	f, ok := r.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "a", f.Code)
	require.Equal(t, 1, r.Len())

	r.InvalidateAll(ctx)
	_, ok = r.Get(ctx, "k")
	require.False(t, ok)
}

func TestNewRedis_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedis(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	require.ErrorContains(t, err, "redis ping")
}
