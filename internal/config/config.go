package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SeedFile   string        // path to a starter-tree yaml file (optional, empty = built-in defaults)
	SessionTTL time.Duration // how long a session marker survives without use (default: 720h)

	// Local persistence (required)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Remote document store (optional, empty addr = cloud sync unavailable)
	RemoteRedisAddr     string
	RemoteRedisUser     string
	RemoteRedisPassword string
	RemoteRedisDB       int

	// Auth endpoint rate limiting
	AuthRateBurst     int // token bucket capacity per client IP
	AuthRatePerMinute int // refill rate per client IP

	TrustProxy bool // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SHELF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SHELF_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SHELF_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SHELF_PRETTY_LOG", true),

		// New-user dataset seeding
		SeedFile:   getenv("SHELF_SEED_FILE", ""), // Optional, empty = built-in starter tree
		SessionTTL: mustDuration("SHELF_SESSION_TTL", 720*time.Hour),

		// Local Redis settings
		RedisAddr:             requireEnv("SHELF_REDIS_ADDR"),
		RedisUser:             getenv("SHELF_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SHELF_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SHELF_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SHELF_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Remote document store (cloud mirror)
		RemoteRedisAddr:     getenv("SHELF_REMOTE_REDIS_ADDR", ""),
		RemoteRedisUser:     getenv("SHELF_REMOTE_REDIS_USERNAME", "default"),
		RemoteRedisPassword: getenv("SHELF_REMOTE_REDIS_PASSWORD", ""),
		RemoteRedisDB:       getenvInt("SHELF_REMOTE_REDIS_DB", 0),

		// Rate limiting on register/login
		AuthRateBurst:     getenvInt("SHELF_AUTH_RATE_BURST", 10),
		AuthRatePerMinute: getenvInt("SHELF_AUTH_RATE_PER_MINUTE", 30),

		TrustProxy: mustBool("SHELF_TRUST_PROXY", false),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SHELF_REDIS_PASSWORD is required when SHELF_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.RemoteRedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// SyncConfigured reports whether a remote document store endpoint is set.
func (c *Config) SyncConfigured() bool {
	return c.RemoteRedisAddr != ""
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
