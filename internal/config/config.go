// Package config defines service configuration and its loading from
// defaults, an optional YAML file and SIGNCHECK_* environment variables.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ayusman/signcheck/internal/classifier"
)

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// DBDriver is sqlite or pgx.
	DBDriver string `koanf:"db_driver"`
	// DBDSN is a file path for sqlite or a connection string for pgx.
	DBDSN          string `koanf:"db_dsn"`
	StoreTimeoutMS int    `koanf:"store_timeout_ms"`

	// ModelPath points at a classifier parameter file. When empty a
	// deterministic development model is generated from ModelSeed.
	ModelPath string `koanf:"model_path"`
	ModelSeed uint64 `koanf:"model_seed"`
	Topology  string `koanf:"topology"`
	HiddenDim int    `koanf:"hidden_dim"`
	NumBlocks int    `koanf:"num_blocks"`
	Expansion int    `koanf:"expansion"`

	// MinConfidence below which predictions are reported as unknown.
	MinConfidence float64 `koanf:"min_confidence"`

	// CatalogPath points at a lesson catalog; empty uses the built-in one.
	CatalogPath string `koanf:"catalog_path"`
	// PassConfidence overrides every task threshold when > 0.
	PassConfidence float64 `koanf:"pass_confidence"`

	// InferenceURL selects a remote predictor; empty runs inference
	// in-process.
	InferenceURL       string `koanf:"inference_url"`
	InferenceTimeoutMS int    `koanf:"inference_timeout_ms"`

	// RateLimitPerSec and RateLimitBurst bound assessment submissions per
	// subject. A zero rate disables limiting.
	RateLimitPerSec float64 `koanf:"rate_limit_per_sec"`
	RateLimitBurst  int     `koanf:"rate_limit_burst"`

	// StaticDir serves a frontend from disk when set.
	StaticDir string `koanf:"static_dir"`

	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsLatencyBucketsMS overrides the latency histogram buckets.
	MetricsLatencyBucketsMS []float64 `koanf:"metrics_latency_buckets_ms"`
}

var metricNamePart = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:               ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
		DBDriver:           "sqlite",
		DBDSN:              "signcheck.db",
		StoreTimeoutMS:     5000,
		ModelSeed:          1,
		Topology:           string(classifier.TopologyResidual),
		HiddenDim:          classifier.DefaultHiddenDim,
		NumBlocks:          classifier.DefaultNumBlocks,
		Expansion:          classifier.DefaultExpansion,
		InferenceTimeoutMS: 5000,
		RateLimitPerSec:    10,
		RateLimitBurst:     20,
		ShutdownTimeoutMS:  10000,
		MetricsNamespace:   "signcheck",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "sqlite" && c.DBDriver != "pgx":
		return fmt.Errorf("%w: db_driver must be sqlite or pgx, got %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.StoreTimeoutMS <= 0:
		return fmt.Errorf("%w: store_timeout_ms must be positive", ErrInvalidConfig)
	case c.InferenceTimeoutMS <= 0:
		return fmt.Errorf("%w: inference_timeout_ms must be positive", ErrInvalidConfig)
	case c.Topology != string(classifier.TopologyResidual) && c.Topology != string(classifier.TopologyMLP):
		return fmt.Errorf("%w: topology must be residual or mlp, got %q", ErrInvalidConfig, c.Topology)
	case c.HiddenDim <= 0:
		return fmt.Errorf("%w: hidden_dim must be positive", ErrInvalidConfig)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("%w: min_confidence must be in [0, 1]", ErrInvalidConfig)
	case c.PassConfidence < 0 || c.PassConfidence > 1:
		return fmt.Errorf("%w: pass_confidence must be in [0, 1]", ErrInvalidConfig)
	case c.RateLimitPerSec < 0 || c.RateLimitBurst < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	case !metricNamePart.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	case c.MetricsSubsystem != "" && !metricNamePart.MatchString(c.MetricsSubsystem):
		return fmt.Errorf("%w: metrics_subsystem %q is not a valid metric name", ErrInvalidConfig, c.MetricsSubsystem)
	}
	for i := 1; i < len(c.MetricsLatencyBucketsMS); i++ {
		if c.MetricsLatencyBucketsMS[i] <= c.MetricsLatencyBucketsMS[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets_ms must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}

// StoreTimeout returns the per-call store timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// InferenceTimeout returns the remote predictor timeout.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// ClassifierConfig returns the network shape settings.
func (c *Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		Topology:  classifier.Topology(c.Topology),
		HiddenDim: c.HiddenDim,
		NumBlocks: c.NumBlocks,
		Expansion: c.Expansion,
	}
}
