package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	PublicURL    string // base for links in emails; derived from the request when empty
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
	LogLevel     string
	CORSOrigins  []string
}

type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	CookieTTL          time.Duration
	PasswordResetTTL   time.Duration
	PasswordChangeSkew time.Duration
	Argon2Memory       uint32
	Argon2Iterations   uint32
	Argon2Parallelism  uint8
}

type EmailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	SMTPUseTLS    bool
	FromName      string
	MailerSendKey string
	DevMode       bool // print emails to logs instead of sending
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type JobsConfig struct {
	ResetCleanupSchedule string
}

// ConfigurationError reports settings the process cannot run without.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3000"),
			Environment:  strings.ToLower(getEnv("APP_ENV", getEnv("NODE_ENV", EnvDevelopment))),
			PublicURL:    strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxBodyBytes: int64(getInt("MAX_BODY_BYTES", 10*1024)),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    getInt("DB_MAX_CONNS", 10),
			MinConns:    getInt("DB_MIN_CONNS", 1),
			MaxLifetime: getDuration("DB_MAX_LIFETIME", time.Hour),
		},
		Mongo: MongoConfig{
			URI:      mongoURI(getEnv("MONGO_URI", "mongodb://localhost:27017"), getEnv("MONGO_PASSWORD", "")),
			Database: getEnv("MONGO_DB", "natours"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			TokenTTL:           getDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
			CookieTTL:          time.Duration(getInt("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
			PasswordResetTTL:   getDuration("PASSWORD_RESET_TTL", 10*time.Minute),
			PasswordChangeSkew: getDuration("PASSWORD_CHANGE_SKEW", time.Second),
			Argon2Memory:       uint32(getInt("ARGON2_MEMORY_KB", 64*1024)),
			Argon2Iterations:   uint32(getInt("ARGON2_ITERATIONS", 1)),
			Argon2Parallelism:  uint8(getInt("ARGON2_PARALLELISM", 2)),
		},
		Email: EmailConfig{
			SMTPHost:      getEnv("EMAIL_HOST", "localhost"),
			SMTPPort:      getInt("EMAIL_PORT", 1025),
			SMTPUser:      getEnv("EMAIL_USERNAME", ""),
			SMTPPass:      getEnv("EMAIL_PASSWORD", ""),
			SMTPFrom:      getEnv("EMAIL_FROM", "hello@natours.local"),
			SMTPUseTLS:    getBool("EMAIL_USE_TLS", false),
			FromName:      getEnv("EMAIL_FROM_NAME", "Natours"),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			DevMode:       getBool("EMAIL_DEV_MODE", true),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		Jobs: JobsConfig{
			ResetCleanupSchedule: getEnv("RESET_CLEANUP_SCHEDULE", "@every 15m"),
		},
	}
}

// Validate reports the first setting that makes the process unable to serve requests.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return &ConfigurationError{Field: "JWT_SECRET", Reason: "is required"}
	}
	if c.Auth.TokenTTL <= 0 {
		return &ConfigurationError{Field: "JWT_EXPIRES_IN", Reason: "must be positive"}
	}
	if c.Auth.PasswordResetTTL <= 0 {
		return &ConfigurationError{Field: "PASSWORD_RESET_TTL", Reason: "must be positive"}
	}
	if c.Auth.PasswordChangeSkew < 0 {
		return &ConfigurationError{Field: "PASSWORD_CHANGE_SKEW", Reason: "must not be negative"}
	}
	if c.Auth.Argon2Iterations == 0 || c.Auth.Argon2Parallelism == 0 {
		return &ConfigurationError{Field: "ARGON2_*", Reason: "iterations and parallelism must be positive"}
	}
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return &ConfigurationError{Field: "APP_ENV", Reason: fmt.Sprintf("unknown environment %q", c.Server.Environment)}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// mongoURI substitutes the <PASSWORD> placeholder so the secret can live in its own variable.
func mongoURI(uri, password string) string {
	if password == "" {
		return uri
	}
	return strings.Replace(uri, "<PASSWORD>", password, 1)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
