package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// Config holds all configuration for the application
type Config struct {
	Solana    SolanaConfig    `mapstructure:"solana"`
	Log       LogConfig       `mapstructure:"log"`
	Guardian  GuardianConfig  `mapstructure:"guardian"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// SolanaConfig holds Solana-specific configuration
type SolanaConfig struct {
	RPC        string `mapstructure:"rpc"`
	Network    string `mapstructure:"network"`
	Commitment string `mapstructure:"commitment"`
	RateLimit  int    `mapstructure:"rate_limit"` // requests per second, 0 disables
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// GuardianConfig holds the monitoring loop settings.
type GuardianConfig struct {
	Interval              time.Duration `mapstructure:"interval"`
	Workers               int           `mapstructure:"workers"`
	FetchTimeout          time.Duration `mapstructure:"fetch_timeout"`
	GracePeriod           time.Duration `mapstructure:"grace_period"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	RetryBaseDelay        time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay         time.Duration `mapstructure:"retry_max_delay"`
	BalanceShiftThreshold float64       `mapstructure:"balance_shift_threshold"`
	MaxPrograms           int           `mapstructure:"max_programs"` // 0 means unlimited
	BaselineNotice        bool          `mapstructure:"baseline_notice"`
}

// WatchlistConfig selects the programs to monitor.
type WatchlistConfig struct {
	// File is an optional YAML watchlist. It takes precedence over Programs.
	File string `mapstructure:"file"`

	// Programs is an inline watchlist.
	Programs []WatchEntry `mapstructure:"programs"`
}

// WatchEntry is a raw, unvalidated watchlist entry.
type WatchEntry struct {
	ID         string            `mapstructure:"id" yaml:"id"`
	Label      string            `mapstructure:"label" yaml:"label"`
	Thresholds *ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
}

// ThresholdsConfig holds raw per-program threshold overrides.
type ThresholdsConfig struct {
	BalanceShift *float64 `mapstructure:"balance_shift" yaml:"balance_shift,omitempty"`
}

// SinksConfig selects alert destinations.
type SinksConfig struct {
	Console    bool          `mapstructure:"console"`
	JSON       bool          `mapstructure:"json"`
	WebhookURL string        `mapstructure:"webhook_url"`
	AppriseURL string        `mapstructure:"apprise_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Listen        string        `mapstructure:"listen"` // prometheus listen address, empty disables the exporter
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// StorageConfig selects the snapshot store backend.
type StorageConfig struct {
	Type     string         `mapstructure:"type"` // memory, postgres or mongodb
	Postgres PostgresConfig `mapstructure:"postgres"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

// Storage backend names.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongoDB  = "mongodb"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Solana: SolanaConfig{
			Network:    "mainnet",
			Commitment: "confirmed",
			RateLimit:  5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Guardian: GuardianConfig{
			Interval:              300 * time.Second,
			Workers:               4,
			FetchTimeout:          20 * time.Second,
			GracePeriod:           10 * time.Second,
			MaxAttempts:           3,
			RetryBaseDelay:        500 * time.Millisecond,
			RetryMaxDelay:         5 * time.Second,
			BalanceShiftThreshold: 0.20,
		},
		Sinks: SinksConfig{
			Console: true,
			Timeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			FlushInterval: time.Minute,
		},
		Storage: StorageConfig{
			Type: StorageMemory,
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "guardian",
				Database:        "guardian",
				SSLMode:         "disable",
				MaxOpenConns:    4,
				MaxIdleConns:    1,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "guardian",
				MaxPoolSize:    10,
				ConnectTimeout: 10,
			},
		},
	}
}

// Load loads configuration from file and environment using the global viper instance,
// which carries the CLI flag bindings.
func Load(configPath string) (*Config, error) {
	return LoadFrom(viper.GetViper(), configPath)
}

// LoadFrom loads configuration into cfg using v.
func LoadFrom(v *viper.Viper, configPath string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".guardian")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("GUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("solana.rpc", "GUARDIAN_SOLANA_RPC", "SOLANA_RPC_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind rpc env: %w", err)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, gerrors.ConfigInvalid("failed to read config: %v", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, gerrors.ConfigInvalid("failed to unmarshal config: %v", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("solana.network", cfg.Solana.Network)
	v.SetDefault("solana.commitment", cfg.Solana.Commitment)
	v.SetDefault("solana.rate_limit", cfg.Solana.RateLimit)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("guardian.interval", cfg.Guardian.Interval)
	v.SetDefault("guardian.workers", cfg.Guardian.Workers)
	v.SetDefault("guardian.fetch_timeout", cfg.Guardian.FetchTimeout)
	v.SetDefault("guardian.grace_period", cfg.Guardian.GracePeriod)
	v.SetDefault("guardian.max_attempts", cfg.Guardian.MaxAttempts)
	v.SetDefault("guardian.retry_base_delay", cfg.Guardian.RetryBaseDelay)
	v.SetDefault("guardian.retry_max_delay", cfg.Guardian.RetryMaxDelay)
	v.SetDefault("guardian.balance_shift_threshold", cfg.Guardian.BalanceShiftThreshold)
	v.SetDefault("guardian.max_programs", cfg.Guardian.MaxPrograms)
	v.SetDefault("guardian.baseline_notice", cfg.Guardian.BaselineNotice)
	v.SetDefault("watchlist.file", "")
	v.SetDefault("sinks.console", cfg.Sinks.Console)
	v.SetDefault("sinks.json", cfg.Sinks.JSON)
	v.SetDefault("sinks.webhook_url", "")
	v.SetDefault("sinks.apprise_url", "")
	v.SetDefault("sinks.timeout", cfg.Sinks.Timeout)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.flush_interval", cfg.Metrics.FlushInterval)
	v.SetDefault("storage.type", cfg.Storage.Type)
}

// Validate checks ranges that would make the monitor misbehave.
func (c *Config) Validate() error {
	g := c.Guardian
	switch {
	case g.Interval <= 0:
		return gerrors.ConfigInvalid("guardian.interval must be positive, got %s", g.Interval)
	case g.Workers < 1:
		return gerrors.ConfigInvalid("guardian.workers must be at least 1, got %d", g.Workers)
	case g.FetchTimeout <= 0:
		return gerrors.ConfigInvalid("guardian.fetch_timeout must be positive, got %s", g.FetchTimeout)
	case g.GracePeriod < 0:
		return gerrors.ConfigInvalid("guardian.grace_period must not be negative, got %s", g.GracePeriod)
	case g.MaxAttempts < 1:
		return gerrors.ConfigInvalid("guardian.max_attempts must be at least 1, got %d", g.MaxAttempts)
	case g.RetryBaseDelay < 0 || g.RetryMaxDelay < g.RetryBaseDelay:
		return gerrors.ConfigInvalid("guardian retry delays are inconsistent (base %s, max %s)", g.RetryBaseDelay, g.RetryMaxDelay)
	case g.BalanceShiftThreshold < 0:
		return gerrors.ConfigInvalid("guardian.balance_shift_threshold must not be negative, got %v", g.BalanceShiftThreshold)
	case g.MaxPrograms < 0:
		return gerrors.ConfigInvalid("guardian.max_programs must not be negative, got %d", g.MaxPrograms)
	}

	if c.Solana.RateLimit < 0 {
		return gerrors.ConfigInvalid("solana.rate_limit must not be negative, got %d", c.Solana.RateLimit)
	}

	switch c.Storage.Type {
	case StorageMemory, StoragePostgres, StorageMongoDB:
	default:
		return gerrors.ConfigInvalid("unsupported storage type %q", c.Storage.Type)
	}

	return nil
}

// GetRPCEndpoint returns the RPC endpoint for the configured network
func (c *SolanaConfig) GetRPCEndpoint() string {
	if c.RPC != "" {
		return c.RPC
	}

	switch c.Network {
	case "devnet":
		return "https://api.devnet.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet", "localhost":
		return "http://localhost:8899"
	default:
		return "https://api.mainnet-beta.solana.com"
	}
}
