package config

import (
	"fmt"
	"strings"

	"github.com/tsesc/tw-homedog/internal/dedup"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"HD_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"HD_DB_MAX_CONNS" default:"8"`

	Source string `envconfig:"HOMEDOG_SOURCE" default:"591"`

	DedupEnabled        bool    `envconfig:"DEDUP_ENABLED" default:"true"`
	DedupThreshold      float64 `envconfig:"DEDUP_THRESHOLD" default:"0.82"`
	DedupPriceTolerance float64 `envconfig:"DEDUP_PRICE_TOLERANCE" default:"0.05"`
	DedupSizeTolerance  float64 `envconfig:"DEDUP_SIZE_TOLERANCE" default:"0.08"`
	DedupCandidateLimit int     `envconfig:"DEDUP_CANDIDATE_LIMIT" default:"200"`
	CleanupBatchSize    int     `envconfig:"CLEANUP_BATCH_SIZE" default:"200"`

	HTTPHost   string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort   int    `envconfig:"HTTP_PORT" default:"8086"`
	APIKeyHash string `envconfig:"API_KEY_HASH" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("HD_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("HD_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("HD_DB_MIN_CONNS (%d) cannot exceed HD_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("HOMEDOG_SOURCE is required")
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be in (0, 1]")
	}
	if c.DedupThreshold <= dedup.GuardCap {
		return fmt.Errorf("DEDUP_THRESHOLD (%v) must exceed the low-signal cap (%v)", c.DedupThreshold, dedup.GuardCap)
	}
	if c.DedupPriceTolerance <= 0 || c.DedupPriceTolerance >= 1 {
		return fmt.Errorf("DEDUP_PRICE_TOLERANCE must be in (0, 1)")
	}
	if c.DedupSizeTolerance <= 0 || c.DedupSizeTolerance >= 1 {
		return fmt.Errorf("DEDUP_SIZE_TOLERANCE must be in (0, 1)")
	}
	if c.DedupCandidateLimit < 1 {
		return fmt.Errorf("DEDUP_CANDIDATE_LIMIT must be >= 1")
	}
	if c.CleanupBatchSize < 1 {
		return fmt.Errorf("CLEANUP_BATCH_SIZE must be >= 1")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be a valid port")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
