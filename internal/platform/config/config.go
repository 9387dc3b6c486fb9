// Package config loads runtime configuration from the environment, with an
// optional .env file for local development. Every knob has a default; the
// zero configuration runs a self-contained daemon with the narrative
// service disabled.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"local"`
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// Learning cycle
	LearnInterval       time.Duration `env:"LEARN_INTERVAL" envDefault:"24h"`
	MaxLagDays          int           `env:"MAX_LAG_DAYS" envDefault:"5"`
	MinCorrelation      float64       `env:"MIN_CORRELATION" envDefault:"0.5"`
	ValidationThreshold float64       `env:"VALIDATION_THRESHOLD" envDefault:"0.3"`
	MaxReferenceMembers int           `env:"MAX_REFERENCE_MEMBERS" envDefault:"3"`

	// News clustering
	MinClusterSize     int     `env:"MIN_CLUSTER_SIZE" envDefault:"3"`
	ClusterSimilarity  float64 `env:"CLUSTER_SIMILARITY_THRESHOLD" envDefault:"0.3"`
	ClusterTopKeywords int     `env:"CLUSTER_TOP_KEYWORDS" envDefault:"10"`

	// Capability switches. With significance off every correlation fails the
	// gate and fallback role classification takes over; with clustering off
	// there is no news-based theme discovery.
	SignificanceEnabled bool `env:"SIGNIFICANCE_ENABLED" envDefault:"true"`
	ClusteringEnabled   bool `env:"CLUSTERING_ENABLED" envDefault:"true"`

	// Theme registry
	InvalidationThreshold int `env:"INVALIDATION_THRESHOLD" envDefault:"3"`

	// Graph maintenance
	DecayInterval      time.Duration `env:"DECAY_INTERVAL" envDefault:"24h"`
	StaleEdgeThreshold float64       `env:"STALE_EDGE_THRESHOLD" envDefault:"0.3"`

	// Persistence journals
	MaxHypotheses int `env:"MAX_HYPOTHESES" envDefault:"200"`
	MaxLogEntries int `env:"MAX_LOG_ENTRIES" envDefault:"500"`

	// Narrative service. An empty API key leaves the service disabled and
	// every enrichment falls back to the rule-based path.
	NarrativeAPIKey  string        `env:"NARRATIVE_API_KEY"`
	NarrativeModel   string        `env:"NARRATIVE_MODEL" envDefault:"gpt-4o-mini"`
	NarrativeTimeout time.Duration `env:"NARRATIVE_TIMEOUT" envDefault:"20s"`
	NarrativeRPS     float64       `env:"NARRATIVE_RPS" envDefault:"1"`

	// Health server
	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// NarrativeEnabled reports whether the narrative service is configured.
func (c *Config) NarrativeEnabled() bool {
	return c.NarrativeAPIKey != ""
}

// Local reports whether the app runs in the local environment, which
// selects human-readable console logging.
func (c *Config) Local() bool {
	return c.AppEnv == "local"
}
