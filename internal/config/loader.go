package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"forecastd/pkg/types"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Model lifecycle
	DefaultVariant string          `json:"default_variant" yaml:"default_variant" toml:"default_variant"`
	Device         string          `json:"device" yaml:"device" toml:"device"`
	Backend        string          `json:"backend" yaml:"backend" toml:"backend"`
	SidecarURL     string          `json:"sidecar_url" yaml:"sidecar_url" toml:"sidecar_url"`
	ModelCacheDir  string          `json:"model_cache_dir" yaml:"model_cache_dir" toml:"model_cache_dir"`
	RemoteBaseURL  string          `json:"remote_base_url" yaml:"remote_base_url" toml:"remote_base_url"`
	ArtifactFiles  []string        `json:"artifact_files" yaml:"artifact_files" toml:"artifact_files"`
	StateFile      string          `json:"state_file" yaml:"state_file" toml:"state_file"`
	Variants       []types.Variant `json:"variants" yaml:"variants" toml:"variants"`

	// Admission
	MaxConcurrent         int `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	Workers               int `json:"workers" yaml:"workers" toml:"workers"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`

	// Result cache
	CacheTTLSeconds   int    `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	CacheSweepSeconds int    `json:"cache_sweep_seconds" yaml:"cache_sweep_seconds" toml:"cache_sweep_seconds"`
	RedisAddr         string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword     string `json:"redis_password" yaml:"redis_password" toml:"redis_password"`
	RedisDB           int    `json:"redis_db" yaml:"redis_db" toml:"redis_db"`

	// Prediction
	HistoryDays int     `json:"history_days" yaml:"history_days" toml:"history_days"`
	MinHistory  int     `json:"min_history" yaml:"min_history" toml:"min_history"`
	MaxHorizon  int     `json:"max_horizon" yaml:"max_horizon" toml:"max_horizon"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	SampleCount int     `json:"sample_count" yaml:"sample_count" toml:"sample_count"`

	// Collaborators
	QuotesDir     string `json:"quotes_dir" yaml:"quotes_dir" toml:"quotes_dir"`
	HistoryDriver string `json:"history_driver" yaml:"history_driver" toml:"history_driver"`
	HistoryDSN    string `json:"history_dsn" yaml:"history_dsn" toml:"history_dsn"`

	// HTTP
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
