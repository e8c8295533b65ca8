package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/replyradar/pkg/freshness"
	"github.com/elonfeng/replyradar/pkg/rank"
	"github.com/elonfeng/replyradar/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Harvest  HarvestConfig  `yaml:"harvest"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Redis    RedisConfig    `yaml:"redis"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures periodic harvest batches.
type ScheduleConfig struct {
	Harvest      string `yaml:"harvest"`
	BatchTimeout string `yaml:"batch_timeout"`
}

// ParseBatchTimeout returns the batch timeout as time.Duration.
func (s ScheduleConfig) ParseBatchTimeout() time.Duration {
	d, err := time.ParseDuration(s.BatchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// HarvestConfig selects the source accounts and how they are fetched.
type HarvestConfig struct {
	Accounts                []string    `yaml:"accounts"`
	MaxAccounts             int         `yaml:"max_accounts"`
	MaxCandidatesPerAccount int         `yaml:"max_candidates_per_account"`
	Workers                 int         `yaml:"workers"`
	Source                  source.Kind `yaml:"source"`
	NitterURL               string      `yaml:"nitter_url"`
	JSONDir                 string      `yaml:"json_dir"`
	UserAgent               string      `yaml:"user_agent"`
}

// ScoringConfig holds the admission thresholds.
type ScoringConfig struct {
	QualityPassThreshold      int             `yaml:"quality_pass_threshold"`
	StarvationMinLikes        int64           `yaml:"starvation_min_likes"`
	StarvationMaxPicks        int             `yaml:"starvation_max_picks"`
	AllowDisallowedInFallback bool            `yaml:"allow_disallowed_in_fallback"`
	Freshness                 freshness.Table `yaml:"freshness"`
	LexiconPath               string          `yaml:"lexicon_path"`
}

// RedisConfig configures the seed-stat publisher.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"`
}

// ParseTTL returns the seed-stat key TTL. Zero means no expiry.
func (r RedisConfig) ParseTTL() time.Duration {
	d, err := time.ParseDuration(r.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinTier rank.ValueTier `yaml:"min_tier"`
	Slack   SlackConfig    `yaml:"slack"`
	Discord DiscordConfig  `yaml:"discord"`
	Webhook WebhookConfig  `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./replyradar.db"},
		Schedule: ScheduleConfig{
			Harvest:      "@every 15m",
			BatchTimeout: "10m",
		},
		Harvest: HarvestConfig{
			Accounts: []string{
				"hubermanlab", "peterattiamd", "foundmyfitness",
				"drandygalpin", "sleepdiplomat",
			},
			MaxAccounts:             20,
			MaxCandidatesPerAccount: 50,
			Workers:                 4,
			Source:                  source.KindNitter,
			NitterURL:               source.DefaultNitterURL,
		},
		Scoring: ScoringConfig{
			QualityPassThreshold: 50,
			StarvationMinLikes:   100,
			StarvationMaxPicks:   2,
			Freshness:            freshness.DefaultTable(),
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "replyradar:seedstats:",
			TTL:       "168h",
		},
		Alerts:  AlertsConfig{MinTier: rank.TierS},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from a YAML file, applies env var overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("REPLYRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REPLYRADAR_QUALITY_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPLYRADAR_QUALITY_THRESHOLD: %w", err)
		}
		cfg.Scoring.QualityPassThreshold = n
	}
	if v := os.Getenv("REPLYRADAR_STARVATION_MIN_LIKES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("REPLYRADAR_STARVATION_MIN_LIKES: %w", err)
		}
		cfg.Scoring.StarvationMinLikes = n
	}
	if v := os.Getenv("REPLYRADAR_MAX_CANDIDATES_PER_ACCOUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPLYRADAR_MAX_CANDIDATES_PER_ACCOUNT: %w", err)
		}
		cfg.Harvest.MaxCandidatesPerAccount = n
	}
	if v := os.Getenv("REPLYRADAR_MAX_ACCOUNTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPLYRADAR_MAX_ACCOUNTS: %w", err)
		}
		cfg.Harvest.MaxAccounts = n
	}
	if v := os.Getenv("REPLYRADAR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REPLYRADAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if t := c.Scoring.QualityPassThreshold; t < 1 || t > 100 {
		return fmt.Errorf("scoring.quality_pass_threshold %d out of range [1,100]", t)
	}
	if c.Scoring.StarvationMinLikes < 0 {
		return fmt.Errorf("scoring.starvation_min_likes must not be negative")
	}
	if c.Scoring.StarvationMaxPicks < 0 {
		return fmt.Errorf("scoring.starvation_max_picks must not be negative")
	}
	if len(c.Scoring.Freshness.Buckets) > 0 {
		if err := c.Scoring.Freshness.Validate(); err != nil {
			return fmt.Errorf("scoring.freshness: %w", err)
		}
	}
	if c.Harvest.MaxAccounts < 0 || c.Harvest.MaxCandidatesPerAccount < 0 || c.Harvest.Workers < 0 {
		return fmt.Errorf("harvest limits must not be negative")
	}
	if !knownKind(c.Harvest.Source) {
		return fmt.Errorf("harvest.source %q is not one of %v", c.Harvest.Source, source.AllKinds())
	}
	if c.Harvest.Source == source.KindJSONDir && c.Harvest.JSONDir == "" {
		return fmt.Errorf("harvest.json_dir is required for the jsondir source")
	}
	switch c.Alerts.MinTier {
	case "", rank.TierS, rank.TierA, rank.TierB:
	default:
		return fmt.Errorf("alerts.min_tier %q is not S, A or B", c.Alerts.MinTier)
	}
	if c.Schedule.Harvest != "" {
		if _, err := cron.ParseStandard(c.Schedule.Harvest); err != nil {
			return fmt.Errorf("schedule.harvest: %w", err)
		}
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not json or text", c.Logging.Format)
	}
	return nil
}

func knownKind(k source.Kind) bool {
	if k == "" {
		return true
	}
	for _, known := range source.AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}
