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
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Notification NotificationConfig
	Agent        AgentConfig
	Embeddings   EmbeddingsConfig
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

// NotificationConfig controls the simulated SMS sender and the bus
// channel carrying ticket-answered events.
type NotificationConfig struct {
	SMSFrom       string
	AnswerChannel string
}

// AgentConfig tunes the lookup-and-escalate flow.
type AgentConfig struct {
	// ConfidenceThreshold is the similarity cutoff below which a search
	// result is treated the same as no result.
	ConfidenceThreshold float64
	// StatusUpdateDelayMS is how long a search may run before the agent
	// speaks a brief status update.
	StatusUpdateDelayMS int
	// TicketTTLHours sets the expiry stamped on escalation tickets.
	TicketTTLHours int
	// EscalateOnOracleError treats a failed knowledge search like an
	// empty result instead of failing the turn. Off by default: a search
	// outage escalating every question would flood the responders.
	EscalateOnOracleError bool
}

// EmbeddingsConfig points at the embedding provider.
type EmbeddingsConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	threshold, err := strconv.ParseFloat(getEnv("AGENT_CONFIDENCE_THRESHOLD", "0.70"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_CONFIDENCE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notification: NotificationConfig{
			SMSFrom:       getEnv("NOTIFY_SMS_FROM", "+15550100000"),
			AnswerChannel: getEnv("NOTIFY_ANSWER_CHANNEL", "ticket_answers"),
		},
		Agent: AgentConfig{
			ConfidenceThreshold:   threshold,
			StatusUpdateDelayMS:   getEnvAsInt("AGENT_STATUS_UPDATE_DELAY_MS", 500),
			TicketTTLHours:        getEnvAsInt("AGENT_TICKET_TTL_HOURS", 24),
			EscalateOnOracleError: getEnvAsBool("AGENT_ESCALATE_ON_ORACLE_ERROR", false),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:   getEnv("EMBEDDINGS_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    os.Getenv("EMBEDDINGS_API_KEY"),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvAsInt("EMBEDDINGS_DIMENSION", 1536),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// StatusUpdateDelay returns the status-update race delay.
func (a AgentConfig) StatusUpdateDelay() time.Duration {
	return time.Duration(a.StatusUpdateDelayMS) * time.Millisecond
}

// TicketTTL returns the expiry window for new escalation tickets.
func (a AgentConfig) TicketTTL() time.Duration {
	return time.Duration(a.TicketTTLHours) * time.Hour
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
