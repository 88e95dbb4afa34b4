package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"forecastd/internal/admission"
	"forecastd/internal/artifact"
	"forecastd/internal/cache"
	"forecastd/internal/catalog"
	"forecastd/internal/config"
	"forecastd/internal/forecast"
	"forecastd/internal/history"
	"forecastd/internal/httpapi"
	"forecastd/internal/manager"
	"forecastd/internal/prediction"
	"forecastd/internal/quotes"
)

const (
	eventRingSize   = 256
	shutdownTimeout = 10 * time.Second
)

type serveFlags struct {
	configPath     string
	addr           string
	logLevel       string
	logFormat      string
	defaultVariant string
	backend        string
	sidecarURL     string
	quotesDir      string
	redisAddr      string
	historyDriver  string
	historyDSN     string
	stateFile      string
	corsOrigins    string
	maxConcurrent  int
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forecast HTTP server",
		Example: "  forecastd serve --config forecastd.yaml\n" +
			"  forecastd serve --addr :9090 --default-variant kronos-mini --log-format console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", os.Getenv("FORECASTD_CONFIG"), "Path to YAML/JSON/TOML config file (env FORECASTD_CONFIG)")
	fl.StringVar(&f.addr, "addr", config.DefaultAddr, "HTTP listen address, e.g. :8080")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "json", "Log format: json|console")
	fl.StringVar(&f.defaultVariant, "default-variant", config.DefaultVariant, "Variant loaded at startup")
	fl.StringVar(&f.backend, "backend", config.DefaultBackend, "Forecasting backend: simulated|sidecar")
	fl.StringVar(&f.sidecarURL, "sidecar-url", "", "Base URL of the inference sidecar")
	fl.StringVar(&f.quotesDir, "quotes-dir", "", "Directory of <code>.csv daily bars (empty uses synthetic quotes)")
	fl.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for the shared result cache (empty uses memory)")
	fl.StringVar(&f.historyDriver, "history-driver", config.DefaultHistoryDriver, "Forecast history driver: sqlite|postgres")
	fl.StringVar(&f.historyDSN, "history-dsn", "", "Forecast history DSN (empty sqlite DSN keeps history in memory)")
	fl.StringVar(&f.stateFile, "state-file", "", "File remembering the last loaded variant")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	fl.IntVar(&f.maxConcurrent, "max-concurrent", config.DefaultMaxConcurrent, "Concurrent inference slots")
	return cmd
}

// buildConfig layers the config file, FORECASTD_* environment and explicitly
// set flags, in that order, then applies defaults and validates.
func buildConfig(cmd *cobra.Command, f serveFlags, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	applyEnv(&cfg, getenv)

	changed := cmd.Flags().Changed
	strFlags := []struct {
		name string
		dst  *string
		val  string
	}{
		{"addr", &cfg.Addr, f.addr},
		{"log-level", &cfg.LogLevel, f.logLevel},
		{"log-format", &cfg.LogFormat, f.logFormat},
		{"default-variant", &cfg.DefaultVariant, f.defaultVariant},
		{"backend", &cfg.Backend, f.backend},
		{"sidecar-url", &cfg.SidecarURL, f.sidecarURL},
		{"quotes-dir", &cfg.QuotesDir, f.quotesDir},
		{"redis-addr", &cfg.RedisAddr, f.redisAddr},
		{"history-driver", &cfg.HistoryDriver, f.historyDriver},
		{"history-dsn", &cfg.HistoryDSN, f.historyDSN},
		{"state-file", &cfg.StateFile, f.stateFile},
	}
	for _, s := range strFlags {
		if changed(s.name) {
			*s.dst = s.val
		}
	}
	if changed("max-concurrent") {
		cfg.MaxConcurrent = f.maxConcurrent
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(f.corsOrigins)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config, getenv func(string) string) {
	strs := map[string]*string{
		"FORECASTD_ADDR":            &cfg.Addr,
		"FORECASTD_LOG_LEVEL":       &cfg.LogLevel,
		"FORECASTD_LOG_FORMAT":      &cfg.LogFormat,
		"FORECASTD_DEFAULT_VARIANT": &cfg.DefaultVariant,
		"FORECASTD_DEVICE":          &cfg.Device,
		"FORECASTD_BACKEND":         &cfg.Backend,
		"FORECASTD_SIDECAR_URL":     &cfg.SidecarURL,
		"FORECASTD_MODEL_CACHE_DIR": &cfg.ModelCacheDir,
		"FORECASTD_QUOTES_DIR":      &cfg.QuotesDir,
		"FORECASTD_REDIS_ADDR":      &cfg.RedisAddr,
		"FORECASTD_REDIS_PASSWORD":  &cfg.RedisPassword,
		"FORECASTD_HISTORY_DRIVER":  &cfg.HistoryDriver,
		"FORECASTD_HISTORY_DSN":     &cfg.HistoryDSN,
		"FORECASTD_STATE_FILE":      &cfg.StateFile,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"FORECASTD_MAX_CONCURRENT":          &cfg.MaxConcurrent,
		"FORECASTD_REQUEST_TIMEOUT_SECONDS": &cfg.RequestTimeoutSeconds,
		"FORECASTD_CACHE_TTL_SECONDS":       &cfg.CacheTTLSeconds,
	}
	for key, dst := range ints {
		if n, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = n
		}
	}
	if v := getenv("FORECASTD_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	}
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func component(log zerolog.Logger, name string) *zerolog.Logger {
	l := log.With().Str("component", name).Logger()
	return &l
}

func newBackend(cfg config.Config, log zerolog.Logger) forecast.Backend {
	if cfg.Backend == "sidecar" {
		return forecast.NewSidecar(cfg.SidecarURL, os.Getenv("FORECASTD_SIDECAR_API_KEY"),
			seconds(cfg.RequestTimeoutSeconds), 5*time.Second, *component(log, "sidecar"))
	}
	return forecast.NewSimulated(*component(log, "simulated"))
}

func newCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.Cache, func()) {
	ttl, sweep := seconds(cfg.CacheTTLSeconds), seconds(cfg.CacheSweepSeconds)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      ttl,
			Sweep:    sweep,
			Logger:   component(log, "cache"),
		})
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis result cache connected")
			return rc, func() { _ = rc.Close() }
		}
		log.Warn().Err(err).Msg("redis not available, using in-memory cache")
	}
	mc := cache.NewMemory(ttl, sweep)
	return mc, mc.Close
}

func newQuotes(cfg config.Config, log zerolog.Logger) (quotes.Provider, error) {
	if cfg.QuotesDir == "" {
		log.Warn().Msg("no quotes_dir configured, serving synthetic quotes")
		return quotes.NewSynthetic(), nil
	}
	return quotes.NewCSVDir(cfg.QuotesDir)
}

// run wires every component and serves until ctx is done.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	cat, err := catalog.WithBuiltins(cfg.Variants)
	if err != nil {
		return fmt.Errorf("variant catalog: %w", err)
	}
	src, err := artifact.NewHubSource(artifact.HubConfig{
		CacheDir: cfg.ModelCacheDir,
		BaseURL:  cfg.RemoteBaseURL,
		Files:    cfg.ArtifactFiles,
		Logger:   *component(log, "artifact"),
	})
	if err != nil {
		return fmt.Errorf("artifact source: %w", err)
	}

	ring := manager.NewRingPublisher(eventRingSize)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:        cat,
		Source:         src,
		Backend:        newBackend(cfg, log),
		DefaultVariant: cfg.DefaultVariant,
		Device:         cfg.Device,
		StatePath:      cfg.StateFile,
		Publisher:      manager.MultiPublisher{manager.LogPublisher{Log: *component(log, "events")}, ring},
		Logger:         component(log, "manager"),
	})

	adm := admission.New(admission.Config{
		Capacity: cfg.MaxConcurrent,
		Workers:  cfg.Workers,
		Timeout:  seconds(cfg.RequestTimeoutSeconds),
		Logger:   component(log, "admission"),
	})
	defer adm.Close()

	results, closeCache := newCache(ctx, cfg, log)
	defer closeCache()

	qp, err := newQuotes(cfg, log)
	if err != nil {
		return fmt.Errorf("quotes: %w", err)
	}

	hist, err := history.Open(ctx, cfg.HistoryDriver, cfg.HistoryDSN)
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer hist.Close()

	svc := prediction.New(prediction.Config{
		Models:      mgr,
		Admitter:    adm,
		Cache:       results,
		Quotes:      qp,
		History:     hist,
		MaxHorizon:  cfg.MaxHorizon,
		HistoryDays: cfg.HistoryDays,
		MinHistory:  cfg.MinHistory,
		Sampling: forecast.SamplingParams{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			SampleCount: cfg.SampleCount,
		},
		Logger: component(log, "prediction"),
	})

	httpapi.SetLogger(*component(log, "http"))
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	deps := httpapi.Deps{
		Models:      mgr,
		Predictions: svc,
		Events:      ring,
		Admission:   adm,
		Quotes:      qp,
		Checks:      []httpapi.HealthCheck{{Name: "history", Check: hist.Health}},
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The server comes up while the default variant loads; /readyz reports it.
	go func() {
		if err := mgr.EnsureLoaded(ctx, cfg.DefaultVariant); err != nil {
			log.Error().Err(err).Str("variant", cfg.DefaultVariant).Msg("initial model load failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Str("variant", cfg.DefaultVariant).Msg("forecastd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("model unload on shutdown")
	}
	return nil
}
