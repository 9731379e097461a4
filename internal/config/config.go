package config // package config loads application configuration from environment variables

import (
	"errors"  // errors joins missing-variable failures into one report
	"fmt"     // fmt formats configuration errors
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings trims and splits raw values
	"time"    // time parses duration settings

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration values.  It is built once in main
// and passed explicitly to every component that needs a setting; nothing
// else in the application reads the environment for these keys.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	LogLevel    string // zap level name (debug, info, warn, error)
	DB          DatabaseConfig
	Session     SessionConfig
	Gemini      GeminiConfig
	BcryptCost  int    // bcrypt cost for password hashing
	AMQPURL     string // RabbitMQ URL for saved-vulnerability events; empty disables them
	CORSOrigins []string
	Redis       RedisConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
}

// DatabaseConfig groups the MySQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// SessionConfig controls the session cookie and the lifetime of the
// server-side session record.
type SessionConfig struct {
	Secret     string        // signs the session cookie
	TTL        time.Duration // lifetime of both the cookie and the stored record
	CookieName string
	Secure     bool // mark the cookie Secure (HTTPS only)
}

// GeminiConfig configures the generative-AI endpoint used by the chatbot.
// An empty APIKey disables the assistant; requests then fail fast.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists; variables already present in the environment win.  Every missing
// required variable is reported in a single error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is normal outside development

	var missing []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:      getenv("APP_ENV", "dev"),
		Port:     getenv("APP_PORT", "5001"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		DB: DatabaseConfig{
			Host:     must("DB_HOST"),
			Port:     getenv("DB_PORT", "3306"),
			User:     must("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"), // empty allowed
			Name:     must("DB_NAME"),
		},
		Session: SessionConfig{
			Secret:     must("SECRET_KEY"),
			TTL:        envDur("SESSION_TTL", 24*time.Hour),
			CookieName: getenv("SESSION_COOKIE", "cve_session"),
			Secure:     envBool("COOKIE_SECURE", false),
		},
		Gemini: GeminiConfig{
			APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:   getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: strings.TrimRight(os.Getenv("GEMINI_BASE_URL"), "/"), // empty uses the SDK default
			Timeout: envDur("GEMINI_TIMEOUT", 10*time.Second),
		},
		BcryptCost:  envInt("BCRYPT_COST", bcrypt.DefaultCost),
		AMQPURL:     amqpURL(),
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "*")),
		Redis:       loadRedisConfig(),
		Cache:       loadCacheConfig(),
		RateLimit:   loadRateLimitConfig(),
	}
	if err := errors.Join(missing...); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("invalid BCRYPT_COST: %d", cfg.BcryptCost)
	}
	if cfg.Session.TTL <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL: %s", cfg.Session.TTL)
	}
	return cfg, nil
}

// IsProd reports whether the application runs in production mode.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production") }

// amqpURL honours both RABBITMQ_URL and the older AMQP_URL name.
func amqpURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return os.Getenv("AMQP_URL")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
