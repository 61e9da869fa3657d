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
// built-in defaults, applies MARGINVIEW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARGINVIEW_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Postgres
	setStr(&cfg.Postgres.DSN, "MARGINVIEW_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MARGINVIEW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARGINVIEW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARGINVIEW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARGINVIEW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARGINVIEW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARGINVIEW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARGINVIEW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARGINVIEW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARGINVIEW_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "MARGINVIEW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARGINVIEW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARGINVIEW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARGINVIEW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARGINVIEW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARGINVIEW_REDIS_TLS_ENABLED")

	// S3
	setStr(&cfg.S3.Endpoint, "MARGINVIEW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARGINVIEW_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARGINVIEW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARGINVIEW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARGINVIEW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MARGINVIEW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MARGINVIEW_S3_FORCE_PATH_STYLE")

	// Feed
	setStr(&cfg.Feed.WsURL, "MARGINVIEW_FEED_WS_URL")

	// Exchange
	setStr(&cfg.Exchange.ZeroExV1, "MARGINVIEW_EXCHANGE_ZEROEX_V1")
	setStr(&cfg.Exchange.ZeroExV2, "MARGINVIEW_EXCHANGE_ZEROEX_V2")
	setStr(&cfg.Exchange.OasisV1, "MARGINVIEW_EXCHANGE_OASIS_V1")
	setStr(&cfg.Exchange.OasisV2, "MARGINVIEW_EXCHANGE_OASIS_V2")

	// Monitor
	setBool(&cfg.Monitor.Enabled, "MARGINVIEW_MONITOR_ENABLED")
	setDuration(&cfg.Monitor.Interval, "MARGINVIEW_MONITOR_INTERVAL")
	setFloat64(&cfg.Monitor.Proximity, "MARGINVIEW_MONITOR_PROXIMITY")

	// Archive
	setBool(&cfg.Archive.Enabled, "MARGINVIEW_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "MARGINVIEW_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "MARGINVIEW_ARCHIVE_RETENTION_DAYS")

	// Server
	setBool(&cfg.Server.Enabled, "MARGINVIEW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARGINVIEW_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARGINVIEW_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MARGINVIEW_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MARGINVIEW_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "MARGINVIEW_SERVER_RATE_WINDOW")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "MARGINVIEW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARGINVIEW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARGINVIEW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARGINVIEW_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.Mode, "MARGINVIEW_MODE")
	setStr(&cfg.LogLevel, "MARGINVIEW_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
