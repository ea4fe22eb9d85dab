// Package config holds service configuration sourced from environment
// variables, flags and an optional YAML file via viper. Every key can be
// set as SIWZMAP_<KEY>, e.g. SIWZMAP_WORKER_COUNT=8.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth for the HTTP API. Empty disables auth (local use).
	APIKey string

	// OpenAI classification
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	RequestsPerSecond float64
	ClassifyCacheTTL  time.Duration

	// Heuristic-only mode skips the LLM entirely.
	HeuristicOnly bool

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	SegmentConcurrency int

	// Upload limits
	MaxUploadBytes int64

	// Segmentation soft limits
	SoftMinChars int
	SoftMaxChars int

	// Aggregation
	DefaultGroupID string

	// Job state
	JobTTL time.Duration
}

// SetDefaults registers every known key with its default on a viper
// instance. The CLI calls this on its shared viper before binding flags.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8090")
	v.SetDefault("api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("requests_per_second", 2.0)
	v.SetDefault("classify_cache_ttl", time.Hour)
	v.SetDefault("heuristic_only", false)
	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)
	v.SetDefault("segment_concurrency", 8)
	v.SetDefault("max_upload_bytes", int64(52428800)) // 50MB
	v.SetDefault("soft_min_chars", 800)
	v.SetDefault("soft_max_chars", 1200)
	v.SetDefault("default_group_id", "V1")
	v.SetDefault("job_ttl", time.Hour)
}

// FromViper materializes a Config from a viper instance that already has
// its sources wired (defaults, env, flags, optional file).
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		Port:               v.GetString("port"),
		APIKey:             v.GetString("api_key"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIModel:        v.GetString("openai_model"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		RequestsPerSecond:  v.GetFloat64("requests_per_second"),
		ClassifyCacheTTL:   v.GetDuration("classify_cache_ttl"),
		HeuristicOnly:      v.GetBool("heuristic_only"),
		WorkerCount:        v.GetInt("worker_count"),
		MaxQueueSize:       v.GetInt("max_queue_size"),
		SegmentConcurrency: v.GetInt("segment_concurrency"),
		MaxUploadBytes:     v.GetInt64("max_upload_bytes"),
		SoftMinChars:       v.GetInt("soft_min_chars"),
		SoftMaxChars:       v.GetInt("soft_max_chars"),
		DefaultGroupID:     v.GetString("default_group_id"),
		JobTTL:             v.GetDuration("job_ttl"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.SegmentConcurrency <= 0 {
		cfg.SegmentConcurrency = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SoftMinChars <= 0 {
		cfg.SoftMinChars = 800
	}
	if cfg.SoftMaxChars < cfg.SoftMinChars {
		cfg.SoftMaxChars = cfg.SoftMinChars
	}
	if cfg.DefaultGroupID == "" {
		cfg.DefaultGroupID = "V1"
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}

	return cfg
}

// Load builds a Config from environment variables alone.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("SIWZMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return FromViper(v)
}

// Validate checks that required settings are present for server mode.
func (c Config) Validate() error {
	if !c.HeuristicOnly && c.OpenAIAPIKey == "" {
		return fmt.Errorf("SIWZMAP_OPENAI_API_KEY is required unless heuristic_only is set")
	}
	return nil
}
