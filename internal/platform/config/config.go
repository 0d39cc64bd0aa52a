// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (matcher, stores, issuer) via constructors.
  - Zero Hidden State: No global variables are used to store config.

Decision thresholds are first-class configuration, never constants: the correct
operating point depends on the embedding model's score distribution and is
tuned per deployment to trade false accepts against false rejects.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Veriface API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL + pgvector)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis): rate budgets, replay nonces, revocation watermarks
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for session token signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// AdminAPIKeyHash is the bcrypt hash of the key required for
	// administrative endpoints (revocation, template lifecycle).
	AdminAPIKeyHash string `env:"ADMIN_API_KEY_HASH,required"`

	// Embedding model contract
	EmbeddingDim           int      `env:"EMBEDDING_DIM"            envDefault:"512"`
	SupportedModelVersions []string `env:"SUPPORTED_MODEL_VERSIONS" envDefault:"facenet-vggface2-v1" envSeparator:","`

	// Decision policy. RejectThreshold must be strictly below AcceptThreshold;
	// scores between the two yield the Inconclusive outcome.
	AcceptThreshold float64 `env:"ACCEPT_THRESHOLD" envDefault:"0.85"`
	RejectThreshold float64 `env:"REJECT_THRESHOLD" envDefault:"0.40"`

	// Enrollment policy
	MaxTemplates       int     `env:"MAX_TEMPLATES"       envDefault:"5"`
	QualityThreshold   float64 `env:"QUALITY_THRESHOLD"   envDefault:"0.55"`
	DuplicateThreshold float64 `env:"DUPLICATE_THRESHOLD" envDefault:"0.97"`

	// Verification attempt budget (fixed window per user+source pair)
	RateWindowSeconds int `env:"RATE_WINDOW_SECONDS" envDefault:"60"`
	RateMaxAttempts   int `env:"RATE_MAX_ATTEMPTS"   envDefault:"5"`

	// InconclusiveCostsAttempt controls whether an Inconclusive outcome
	// consumes a slot from the attempt budget like a hard Reject does.
	InconclusiveCostsAttempt bool `env:"INCONCLUSIVE_COSTS_ATTEMPT" envDefault:"false"`

	// Credential policy
	TokenTTLSeconds int `env:"TOKEN_TTL_SECONDS" envDefault:"900"`

	// ScoringTimeoutMillis bounds the template fetch + match step.
	ScoringTimeoutMillis int `env:"SCORING_TIMEOUT_MILLIS" envDefault:"2000"`

	// External embedding producer (optional; required only for image payloads)
	ExtractorURL string `env:"EXTRACTOR_URL"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces cross-field invariants that tag-level parsing cannot express.
func (c *Config) Validate() error {
	if c.RejectThreshold >= c.AcceptThreshold {
		return fmt.Errorf("config: REJECT_THRESHOLD (%v) must be below ACCEPT_THRESHOLD (%v)",
			c.RejectThreshold, c.AcceptThreshold)
	}
	if c.DuplicateThreshold <= c.AcceptThreshold {
		return fmt.Errorf("config: DUPLICATE_THRESHOLD (%v) must be above ACCEPT_THRESHOLD (%v)",
			c.DuplicateThreshold, c.AcceptThreshold)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.MaxTemplates <= 0 {
		return fmt.Errorf("config: MAX_TEMPLATES must be positive, got %d", c.MaxTemplates)
	}
	if c.RateMaxAttempts <= 0 || c.RateWindowSeconds <= 0 {
		return fmt.Errorf("config: rate budget requires positive RATE_MAX_ATTEMPTS and RATE_WINDOW_SECONDS")
	}
	if len(c.SupportedModelVersions) == 0 {
		return fmt.Errorf("config: SUPPORTED_MODEL_VERSIONS must not be empty")
	}
	return nil
}

// # Derived Accessors

// TokenTTL returns the session token lifetime as a [time.Duration].
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// RateWindow returns the attempt budget window as a [time.Duration].
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// ScoringTimeout returns the scoring deadline as a [time.Duration].
func (c *Config) ScoringTimeout() time.Duration {
	return time.Duration(c.ScoringTimeoutMillis) * time.Millisecond
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
