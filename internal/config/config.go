package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// OAuth app registration
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string // ex: https://perch.domain.ext/api/auth/callback
	DashboardURL      string // post-login redirect target

	// Upstream platform
	UpstreamBaseURL string // override for testing, empty = production API

	// Storage
	DBPath       string // sqlite database file
	TaxonomyFile string // optional category keyword overrides (yaml)

	// Sessions
	SessionTTL   time.Duration
	CookieSecure bool

	// Schedulers
	RefreshInterval  time.Duration // scheduled cache refresh cadence
	LogPruneInterval time.Duration // sync log pruning cadence
	LogRetention     time.Duration // how long sync log rows are kept

	// Own-surface rate limiting
	RateLimitBurst     int
	RateLimitPerMinute int

	// Redis (session store)
	RedisAddr             string
	RedisUser             string
	RedisPassword         string
	RedisPasswordRequired bool
	RedisDB               int
	RedisDT               time.Duration // dial timeout
	RedisRT               time.Duration // read timeout
	RedisWT               time.Duration // write timeout
	RedisMaxWait          time.Duration // max wait between retries
	RedisPingTimeout      time.Duration
	RedisPoolSize         int
	RedisConnectTimeout   time.Duration // total time to retry connecting
	RedisRetryInterval    time.Duration // initial wait between retries, grows exponentially

	AllowedOrigins []string // CORS allow-list, empty = same-origin only
	TrustProxy     bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	// Local development convenience; in production the environment is
	// already populated and no .env file exists.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("PERCH_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: mustDuration("PERCH_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("PERCH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PERCH_PRETTY_LOG", true),

		// OAuth
		OAuthClientID:     requireEnv("PERCH_OAUTH_CLIENT_ID"),
		OAuthClientSecret: getenv("PERCH_OAUTH_CLIENT_SECRET", ""),
		OAuthRedirectURL:  requireEnv("PERCH_OAUTH_REDIRECT_URL"),
		DashboardURL:      getenv("PERCH_DASHBOARD_URL", "/"),

		// Upstream
		UpstreamBaseURL: getenv("PERCH_UPSTREAM_BASE_URL", ""),

		// Storage
		DBPath:       getenv("PERCH_DB_PATH", "perch.db"),
		TaxonomyFile: getenv("PERCH_TAXONOMY_FILE", ""),

		// Sessions
		SessionTTL:   mustDuration("PERCH_SESSION_TTL", 7*24*time.Hour),
		CookieSecure: mustBool("PERCH_COOKIE_SECURE", true),

		// Schedulers
		RefreshInterval:  mustDuration("PERCH_REFRESH_INTERVAL", 30*time.Minute),
		LogPruneInterval: mustDuration("PERCH_LOG_PRUNE_INTERVAL", 24*time.Hour),
		LogRetention:     mustDuration("PERCH_LOG_RETENTION", 30*24*time.Hour),

		// Rate limiting
		RateLimitBurst:     getenvInt("PERCH_RATE_LIMIT_BURST", 30),
		RateLimitPerMinute: getenvInt("PERCH_RATE_LIMIT_PER_MINUTE", 60),

		// Redis settings
		RedisAddr:             requireEnv("PERCH_REDIS_ADDR"),
		RedisUser:             getenv("PERCH_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("PERCH_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("PERCH_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("PERCH_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),

		// Access
		AllowedOrigins: splitAndTrim(getenv("PERCH_ALLOWED_ORIGINS", "")),
		TrustProxy:     mustBool("PERCH_TRUST_PROXY", true),
	}

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: PERCH_REDIS_PASSWORD is required when PERCH_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.OAuthClientSecret = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
