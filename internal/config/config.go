// Package config defines the summarizer's runtime configuration.
//
// The configuration is loaded once at cold start from environment variables
// and passed by value into the pipeline, so handlers never reach for
// os.Getenv mid-invocation. Optional fields carry documented defaults
// matching the tuning of the original deployment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings for the summarization dispatcher.
type Config struct {
	// RunPodAPIKey is the bearer credential for the RunPod API. It may be
	// left empty in the environment and resolved from SSM at cold start.
	RunPodAPIKey string `env:"RUNPOD_API_KEY"`

	// RunPodEndpoint is the base URL of the RunPod serverless endpoint,
	// e.g. https://api.runpod.ai/v2/<endpoint-id>.
	RunPodEndpoint string `env:"RUNPOD_ENDPOINT_URL"`

	// SSMKeyParam is the SSM Parameter Store path holding the API key,
	// consulted only when RUNPOD_API_KEY is unset.
	SSMKeyParam string `env:"SSM_RUNPOD_KEY_PARAM" envDefault:"/transcript-summarizer/prod/runpod-api-key"`

	// OutputBucket is where summaries are written. Empty means the source
	// bucket of the triggering upload.
	OutputBucket string `env:"OUTPUT_BUCKET"`

	// OutputPrefix is prepended to derived summary keys.
	OutputPrefix string `env:"OUTPUT_PREFIX" envDefault:"summaries/"`

	// MaxNewTokens bounds the generated summary length (~4000 words at
	// roughly 4 tokens per word).
	MaxNewTokens int     `env:"SUMMARY_MAX_NEW_TOKENS" envDefault:"16000"`
	Temperature  float64 `env:"SUMMARY_TEMPERATURE" envDefault:"0.7"`
	TopP         float64 `env:"SUMMARY_TOP_P" envDefault:"0.9"`

	// PollInterval is the fixed delay between job status checks;
	// PollDeadline bounds the total time spent waiting for one job.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	PollDeadline time.Duration `env:"POLL_DEADLINE" envDefault:"5m"`

	// SubmitTimeout and StatusTimeout bound individual HTTP calls to the
	// RunPod API.
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"30s"`
	StatusTimeout time.Duration `env:"STATUS_TIMEOUT" envDefault:"10s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present. Called after the SSM
// fallback has had a chance to fill in the API key.
func (c Config) Validate() error {
	if c.RunPodEndpoint == "" {
		return fmt.Errorf("RUNPOD_ENDPOINT_URL is required")
	}
	if c.RunPodAPIKey == "" {
		return fmt.Errorf("RunPod API key not configured (RUNPOD_API_KEY or SSM parameter %s)", c.SSMKeyParam)
	}
	return nil
}
