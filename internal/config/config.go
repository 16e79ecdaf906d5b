package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	AI           AIConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Workflow     WorkflowConfig
	SLA          SLAConfig
	RateLimit    RateLimitConfig
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

// LoggerConfig configures logging behavior. FilePath enables a rotated log file next to stdout.
type LoggerConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig defines the shared secret used for internal service tokens.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// AIConfig configures the ticket analysis provider.
type AIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// NotificationConfig holds SMTP delivery and queue settings.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	QueueKey     string
	MaxRetries   int
}

// KafkaConfig enables event forwarding and the ticket-created consumer when Brokers is set.
type KafkaConfig struct {
	Brokers            []string
	EventsTopic        string
	TicketCreatedTopic string
	GroupID            string
}

// WorkflowConfig sizes the assignment workflow runner.
type WorkflowConfig struct {
	Workers             int
	QueueSize           int
	TimeoutSeconds      int
	WorkloadConcurrency int
}

// SLAConfig configures the periodic sweep.
type SLAConfig struct {
	WarningThresholdHours float64
	SweepSchedule         string
}

// RateLimitConfig bounds calls to the internal trigger endpoints.
type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	threshold, err := strconv.ParseFloat(getEnv("SLA_WARNING_THRESHOLD_HOURS", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_WARNING_THRESHOLD_HOURS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-routing"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
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
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 14),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		AI: AIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 30),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "25"),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			QueueKey:     getEnv("NOTIFY_QUEUE_KEY", "helpdesk:notifications"),
			MaxRetries:   getEnvAsInt("NOTIFY_MAX_RETRIES", 3),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvAsList("KAFKA_BROKERS"),
			EventsTopic:        getEnv("KAFKA_EVENTS_TOPIC", "helpdesk.ticket-events"),
			TicketCreatedTopic: getEnv("KAFKA_TICKET_CREATED_TOPIC", "helpdesk.ticket-created"),
			GroupID:            getEnv("KAFKA_GROUP_ID", "helpdesk-routing"),
		},
		Workflow: WorkflowConfig{
			Workers:             getEnvAsInt("WORKFLOW_WORKERS", 4),
			QueueSize:           getEnvAsInt("WORKFLOW_QUEUE_SIZE", 256),
			TimeoutSeconds:      getEnvAsInt("WORKFLOW_TIMEOUT_SECONDS", 120),
			WorkloadConcurrency: getEnvAsInt("WORKFLOW_WORKLOAD_CONCURRENCY", 8),
		},
		SLA: SLAConfig{
			WarningThresholdHours: threshold,
			SweepSchedule:         getEnv("SLA_SWEEP_SCHEDULE", "@daily"),
		},
		RateLimit: RateLimitConfig{
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workflow.Workers <= 0 {
		errs = append(errs, errors.New("WORKFLOW_WORKERS must be positive"))
	}
	if c.Workflow.QueueSize < 0 {
		errs = append(errs, errors.New("WORKFLOW_QUEUE_SIZE must not be negative"))
	}
	if c.SLA.WarningThresholdHours < 0 {
		errs = append(errs, errors.New("SLA_WARNING_THRESHOLD_HOURS must not be negative"))
	}
	if strings.TrimSpace(c.SLA.SweepSchedule) == "" {
		errs = append(errs, errors.New("SLA_SWEEP_SCHEDULE required"))
	}
	if c.Notification.MaxRetries < 0 {
		errs = append(errs, errors.New("NOTIFY_MAX_RETRIES must not be negative"))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "dev-secret" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
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

// Timeout returns the per-request AI timeout.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Enabled reports whether an API key was configured.
func (a AIConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

// Timeout bounds one ticket's workflow run.
func (w WorkflowConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// WarningThreshold returns the near-breach window.
func (s SLAConfig) WarningThreshold() time.Duration {
	return time.Duration(s.WarningThresholdHours * float64(time.Hour))
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Enabled reports whether kafka brokers were configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// SMTPAddr returns host:port for delivery.
func (n NotificationConfig) SMTPAddr() string {
	return n.SMTPHost + ":" + n.SMTPPort
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
