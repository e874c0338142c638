package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Identity IdentityConfig
	LLM      LLMConfig
	Triage   TriageConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IdentityConfig holds the identity provider's verification material.
type IdentityConfig struct {
	// JWTPublicKey is a PEM encoded RSA public key used for RS256 session tokens.
	JWTPublicKey string
	// JWTSecret enables HS256 verification when no public key is configured.
	JWTSecret         string
	Issuer            string
	LeewaySeconds     int
	WebhookSecret     string
	WebhookDedupeTTLS int
}

// LLMConfig configures the reasoning service client.
type LLMConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	MaxTokens        int
	TimeoutSeconds   int
	StructuredOutput bool
}

// TriageConfig configures the ticket triage stream and worker.
type TriageConfig struct {
	Stream         string
	Group          string
	DLQStream      string
	BatchSize      int64
	BlockMillis    int
	MaxAttempts    int
	LockTTLSeconds int
	WorkerEnabled  bool

	ReclaimIdleSeconds     int
	ReclaimIntervalSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "triage-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			JWTPublicKey:      os.Getenv("CLERK_JWT_KEY"),
			JWTSecret:         os.Getenv("CLERK_SECRET_KEY"),
			Issuer:            os.Getenv("CLERK_ISSUER"),
			LeewaySeconds:     getEnvAsInt("CLERK_LEEWAY_SECONDS", 5),
			WebhookSecret:     os.Getenv("CLERK_WEBHOOK_SECRET"),
			WebhookDedupeTTLS: getEnvAsInt("WEBHOOK_DEDUPE_TTL_SECONDS", 86400),
		},
		LLM: LLMConfig{
			APIKey:           os.Getenv("GEMINI_API_KEY"),
			BaseURL:          getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:            getEnv("LLM_MODEL", "gemini-2.5-flash-lite"),
			MaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 1024),
			TimeoutSeconds:   getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
			StructuredOutput: getEnvAsBool("LLM_STRUCTURED_OUTPUT", false),
		},
		Triage: TriageConfig{
			Stream:         getEnv("TRIAGE_STREAM", "triage_tickets"),
			Group:          getEnv("TRIAGE_GROUP", "triage_workers"),
			DLQStream:      getEnv("TRIAGE_DLQ_STREAM", "triage_tickets_dlq"),
			BatchSize:      int64(getEnvAsInt("TRIAGE_BATCH_SIZE", 10)),
			BlockMillis:    getEnvAsInt("TRIAGE_BLOCK_MILLIS", 5000),
			MaxAttempts:    getEnvAsInt("TRIAGE_MAX_ATTEMPTS", 3),
			LockTTLSeconds: getEnvAsInt("TRIAGE_LOCK_TTL_SECONDS", 120),
			WorkerEnabled:  getEnvAsBool("TRIAGE_WORKER_ENABLED", true),

			ReclaimIdleSeconds:     getEnvAsInt("TRIAGE_RECLAIM_IDLE_SECONDS", 300),
			ReclaimIntervalSeconds: getEnvAsInt("TRIAGE_RECLAIM_INTERVAL_SECONDS", 30),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether verbose error bodies may be returned.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Leeway returns the clock skew tolerance for token validation.
func (i IdentityConfig) Leeway() time.Duration {
	return time.Duration(i.LeewaySeconds) * time.Second
}

// WebhookDedupeTTL returns how long processed webhook ids are remembered.
func (i IdentityConfig) WebhookDedupeTTL() time.Duration {
	if i.WebhookDedupeTTLS <= 0 {
		return 0
	}
	return time.Duration(i.WebhookDedupeTTLS) * time.Second
}

// Timeout bounds a single reasoning-service call.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Block returns how long a stream read waits for new messages.
func (t TriageConfig) Block() time.Duration {
	return time.Duration(t.BlockMillis) * time.Millisecond
}

// LockTTL returns the per-ticket lock lifetime.
func (t TriageConfig) LockTTL() time.Duration {
	return time.Duration(t.LockTTLSeconds) * time.Second
}

// ReclaimIdle is how long a delivered message may sit unacked before another consumer claims it.
func (t TriageConfig) ReclaimIdle() time.Duration {
	return time.Duration(t.ReclaimIdleSeconds) * time.Second
}

func (t TriageConfig) ReclaimInterval() time.Duration {
	return time.Duration(t.ReclaimIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
