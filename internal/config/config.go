// Package config defines the top-level configuration for the market mirror
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by PREDYX_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Sim      SimConfig      `toml:"sim"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig selects the event source. With Backend "sim" the in-process
// simulator is used and RPCURL/FactoryAddress are ignored.
type ChainConfig struct {
	Backend         string   `toml:"backend"` // sim | rpc
	RPCURL          string   `toml:"rpc_url"`
	FactoryAddress  string   `toml:"factory_address"`
	ScanInterval    duration `toml:"scan_interval"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// OracleConfig holds the resolution oracle's signing key sources.
type OracleConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds database connection parameters. An in-memory store is
// used instead when Enabled is false.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds cache and signal bus parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls when rows move to object storage and how long the
// archive objects are retained.
type ArchiveConfig struct {
	Interval         duration `toml:"interval"`
	ArchiveAfterDays int      `toml:"archive_after_days"`
	RetainBlobDays   int      `toml:"retain_blob_days"`
}

// SimConfig controls the traffic generator that exercises simulated markets.
type SimConfig struct {
	SeedMarkets    int      `toml:"seed_markets"`
	SeedLiquidity  float64  `toml:"seed_liquidity"`
	Traders        int      `toml:"traders"`
	TradeInterval  duration `toml:"trade_interval"`
	MaxTradeAmount float64  `toml:"max_trade_amount"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Backend:         "sim",
			ScanInterval:    duration{15 * time.Second},
			RefreshInterval: duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "predyx",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "predyx-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:         duration{time.Hour},
			ArchiveAfterDays: 30,
			RetainBlobDays:   365,
		},
		Sim: SimConfig{
			SeedMarkets:    3,
			SeedLiquidity:  1000,
			Traders:        5,
			TradeInterval:  duration{2 * time.Second},
			MaxTradeAmount: 50,
		},
		Server: ServerConfig{
			Enabled:     true,
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"market_created", "market_resolved"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"index":  true,
	"server": true,
	"sim":    true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"sim": true,
	"rpc": true,
}

// Validate checks the Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: index, server, sim, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !validBackends[strings.ToLower(c.Chain.Backend)] {
		errs = append(errs, fmt.Sprintf("chain: unknown backend %q (valid: sim, rpc)", c.Chain.Backend))
	}
	if strings.ToLower(c.Chain.Backend) == "rpc" {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required for the rpc backend")
		}
		if c.Chain.FactoryAddress == "" {
			errs = append(errs, "chain: factory_address is required for the rpc backend")
		}
	}
	if c.Chain.ScanInterval.Duration <= 0 {
		errs = append(errs, "chain: scan_interval must be positive")
	}
	if c.Chain.RefreshInterval.Duration <= 0 {
		errs = append(errs, "chain: refresh_interval must be positive")
	}

	if c.Oracle.EncryptedKeyPath != "" && c.Oracle.KeyPassword == "" {
		errs = append(errs, "oracle: key_password is required when encrypted_key_path is set")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.ArchiveAfterDays < 1 {
			errs = append(errs, "archive: archive_after_days must be >= 1")
		}
	}

	if strings.ToLower(c.Mode) == "sim" || (strings.ToLower(c.Mode) == "full" && strings.ToLower(c.Chain.Backend) == "sim") {
		if c.Sim.SeedLiquidity <= 0 {
			errs = append(errs, "sim: seed_liquidity must be > 0")
		}
		if c.Sim.TradeInterval.Duration <= 0 {
			errs = append(errs, "sim: trade_interval must be positive")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
