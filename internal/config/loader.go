package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDYX_* environment overrides, and returns the
// final Config. The result has NOT been validated; call Config.Validate
// after Load. An empty path skips the file and uses defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present, silently ignore when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDYX_* environment variables and
// overwrites the corresponding fields when set. This lets operators inject
// secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Chain.Backend, "PREDYX_CHAIN_BACKEND")
	setStr(&cfg.Chain.RPCURL, "PREDYX_CHAIN_RPC_URL")
	setStr(&cfg.Chain.FactoryAddress, "PREDYX_CHAIN_FACTORY_ADDRESS")
	setDuration(&cfg.Chain.ScanInterval, "PREDYX_CHAIN_SCAN_INTERVAL")
	setDuration(&cfg.Chain.RefreshInterval, "PREDYX_CHAIN_REFRESH_INTERVAL")

	setStr(&cfg.Oracle.PrivateKey, "PREDYX_ORACLE_PRIVATE_KEY")
	setStr(&cfg.Oracle.EncryptedKeyPath, "PREDYX_ORACLE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Oracle.KeyPassword, "PREDYX_ORACLE_KEY_PASSWORD")

	setBool(&cfg.Postgres.Enabled, "PREDYX_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PREDYX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDYX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDYX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDYX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDYX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDYX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDYX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDYX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDYX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDYX_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "PREDYX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PREDYX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDYX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDYX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDYX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDYX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDYX_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "PREDYX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PREDYX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDYX_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDYX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDYX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDYX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDYX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDYX_S3_FORCE_PATH_STYLE")

	setDuration(&cfg.Archive.Interval, "PREDYX_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.ArchiveAfterDays, "PREDYX_ARCHIVE_AFTER_DAYS")
	setInt(&cfg.Archive.RetainBlobDays, "PREDYX_ARCHIVE_RETAIN_BLOB_DAYS")

	setInt(&cfg.Sim.SeedMarkets, "PREDYX_SIM_SEED_MARKETS")
	setFloat64(&cfg.Sim.SeedLiquidity, "PREDYX_SIM_SEED_LIQUIDITY")
	setInt(&cfg.Sim.Traders, "PREDYX_SIM_TRADERS")
	setDuration(&cfg.Sim.TradeInterval, "PREDYX_SIM_TRADE_INTERVAL")
	setFloat64(&cfg.Sim.MaxTradeAmount, "PREDYX_SIM_MAX_TRADE_AMOUNT")

	setBool(&cfg.Server.Enabled, "PREDYX_SERVER_ENABLED")
	setStr(&cfg.Server.Host, "PREDYX_SERVER_HOST")
	setInt(&cfg.Server.Port, "PREDYX_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PREDYX_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDYX_SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "PREDYX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDYX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDYX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDYX_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "PREDYX_MODE")
	setStr(&cfg.LogLevel, "PREDYX_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
