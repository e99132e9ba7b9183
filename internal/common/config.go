package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/billguard/constants"
)

// Config holds all application configuration
type Config struct {
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	LLM       LLMConfig
	Workflow  WorkflowConfig
	Telemetry TelemetryConfig
	LogLevel  slog.Level
}

// StoreConfig selects the slot backend bills are persisted to.
type StoreConfig struct {
	Driver string // memory | sqlite | postgres | redis
	DSN    string
	Key    string
}

// DatabaseConfig holds pgx pool tuning for the postgres driver
type DatabaseConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string // gemini | openai
	Temperature float32
	Timeout     time.Duration

	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiModel          string
	GeminiReasoningModel string

	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIReasoningModel string
}

// TelemetryConfig enables OTLP export of traces and metrics when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint   string
	ServiceName    string
	ExportInterval time.Duration
}

type WorkflowConfig struct {
	MaxUploadMB      int
	UploadDateLayout string
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultStoreKey = "billguard_db_v1"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			DSN:    getEnv("STORE_DSN", "./billguard.db"),
			Key:    getEnv("STORE_KEY", DefaultStoreKey),
		},
		Database: DatabaseConfig{
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.2),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),

			GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
			GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			GeminiReasoningModel: getEnv("GEMINI_REASONING_MODEL", "gemini-2.5-pro"),

			OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIReasoningModel: getEnv("OPENAI_REASONING_MODEL", "gpt-4o"),
		},
		Workflow: WorkflowConfig{
			MaxUploadMB:      getEnvAsInt("MAX_UPLOAD_MB", constants.MaxUploadMBDefault),
			UploadDateLayout: getEnv("UPLOAD_DATE_LAYOUT", "1/2/2006"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "billguard"),
			ExportInterval: getEnvAsDuration("OTEL_METRIC_EXPORT_INTERVAL", 30*time.Second),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.Store.DSN == "" || !strings.HasPrefix(c.Store.DSN, "postgres") {
			return NewAppError("CONFIG_ERROR", "STORE_DSN must be a postgres URL when STORE_DRIVER=postgres", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "unknown STORE_DRIVER "+c.Store.Driver, ErrInvalidInput)
	}
	if c.Store.Key == "" {
		return NewAppError("CONFIG_ERROR", "STORE_KEY is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "unknown LLM_PROVIDER "+c.LLM.Provider, ErrInvalidInput)
	}
	if c.Workflow.MaxUploadMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateServer additionally checks what only the daemon needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
