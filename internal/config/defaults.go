package config

import (
	"fmt"
	"strings"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultAddr                  = ":8080"
	DefaultVariant               = "kronos-small"
	DefaultDevice                = "cpu"
	DefaultBackend               = "simulated"
	DefaultModelCacheDir         = "~/.cache/huggingface/hub"
	DefaultRemoteBaseURL         = "https://huggingface.co"
	DefaultMaxConcurrent         = 10
	DefaultRequestTimeoutSeconds = 30
	DefaultCacheTTLSeconds       = 300
	DefaultCacheSweepSeconds     = 60
	DefaultHistoryDays           = 60
	DefaultMinHistory            = 30
	DefaultMaxHorizon            = 10
	DefaultTemperature           = 1.0
	DefaultTopP                  = 0.9
	DefaultSampleCount           = 1
	DefaultHistoryDriver         = "sqlite"
	DefaultMaxBodyBytes          = 1 << 20
)

// DefaultArtifactFiles are fetched for every remote artifact.
var DefaultArtifactFiles = []string{"config.json", "model.safetensors"}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.DefaultVariant == "" {
		c.DefaultVariant = DefaultVariant
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.ModelCacheDir == "" {
		c.ModelCacheDir = DefaultModelCacheDir
	}
	if c.RemoteBaseURL == "" {
		c.RemoteBaseURL = DefaultRemoteBaseURL
	}
	if len(c.ArtifactFiles) == 0 {
		c.ArtifactFiles = append([]string(nil), DefaultArtifactFiles...)
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Workers <= 0 {
		c.Workers = c.MaxConcurrent
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.CacheSweepSeconds <= 0 {
		c.CacheSweepSeconds = DefaultCacheSweepSeconds
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.MinHistory <= 0 {
		c.MinHistory = DefaultMinHistory
	}
	if c.MaxHorizon <= 0 {
		c.MaxHorizon = DefaultMaxHorizon
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP <= 0 {
		c.TopP = DefaultTopP
	}
	if c.SampleCount <= 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.HistoryDriver == "" {
		c.HistoryDriver = DefaultHistoryDriver
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Backend {
	case "simulated":
	case "sidecar":
		if strings.TrimSpace(c.SidecarURL) == "" {
			return fmt.Errorf("backend %q requires sidecar_url", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	switch c.HistoryDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown history driver: %s", c.HistoryDriver)
	}
	if c.TopP > 1 {
		return fmt.Errorf("top_p must be in (0,1], got %v", c.TopP)
	}
	if c.MinHistory > c.HistoryDays {
		return fmt.Errorf("min_history (%d) exceeds history_days (%d)", c.MinHistory, c.HistoryDays)
	}
	for _, v := range c.Variants {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("variant with empty id")
		}
	}
	return nil
}
