package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"forecastd/pkg/types"
)

const defaultKeyPrefix = "forecastd:forecast:"

// RedisConfig configures the shared Redis cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	Sweep     time.Duration
	KeyPrefix string
	Logger    *zerolog.Logger
}

// Redis stores forecasts in Redis so several daemons share results. When
// Redis errors, reads and writes fall back to an in-process Memory cache.
type Redis struct {
	rdb    *redis.Client
	mem    *Memory
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// NewRedis connects and pings Redis.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedis(rdb, cfg), nil
}

func newRedis(rdb *redis.Client, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	r := &Redis{
		rdb:    rdb,
		mem:    NewMemory(cfg.TTL, cfg.Sweep),
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
		log:    zerolog.Nop(),
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	}
	return r
}

// Close shuts down the memory sweeper and the Redis client.
func (r *Redis) Close() error {
	r.mem.Close()
	return r.rdb.Close()
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) (types.Forecast, bool) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observe("redis", false)
		return types.Forecast{}, false
	}
	if err != nil {
		r.fallback("get", err)
		return r.mem.Get(ctx, key)
	}
	var f types.Forecast
	if err := json.Unmarshal(b, &f); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		_ = r.rdb.Del(ctx, r.key(key)).Err()
		observe("redis", false)
		return types.Forecast{}, false
	}
	observe("redis", true)
	return f, true
}

func (r *Redis) Put(ctx context.Context, key string, f types.Forecast) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.key(key), b, r.ttl).Err(); err != nil {
		r.fallback("set", err)
		r.mem.Put(ctx, key, f)
	}
}

// InvalidateAll deletes every key under the prefix and clears the fallback.
func (r *Redis) InvalidateAll(ctx context.Context) {
	r.mem.InvalidateAll(ctx)
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 256).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 256 {
			_ = r.rdb.Del(ctx, batch...).Err()
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		_ = r.rdb.Del(ctx, batch...).Err()
	}
	if err := iter.Err(); err != nil {
		r.fallback("scan", err)
	}
}

// Len counts Redis keys under the prefix plus fallback entries. It is
// best-effort and intended for status reporting only.
func (r *Redis) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n + r.mem.Len()
}

func (r *Redis) fallback(op string, err error) {
	fallbacksTotal.Inc()
	r.log.Warn().Err(err).Str("op", op).Msg("redis unavailable, using memory cache")
}
