// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Responder backends.
const (
	BackendRemote = "remote"
	BackendLLM    = "llm"
)

// Attachment stores.
const (
	AttachmentStoreMemory = "memory"
	AttachmentStoreS3     = "s3"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string

	// Session and auth settings
	AuthEnabled bool
	JWTSecret   string

	// Remote analysis services
	UseCaseURL           string
	ReverseURL           string
	EnhancementURL       string
	ComplianceURL        string
	EnhancementPollDelay time.Duration
	ResponderTimeout     time.Duration
	ResponderBackend     string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	DefaultLLM      string
	LLMModel        string

	// NATS settings
	NATSEnabled      bool
	NATSURL          string
	NATSCAFile       string
	NATSCertFile     string
	NATSKeyFile      string
	NATSToken        string
	NATSStreamMaxAge time.Duration

	// Attachments
	AttachmentStore    string
	MaxUploadBytes     int64
	S3Region           string
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3KeyPrefix        string
	SeedSamples        bool
	SSEHeartbeatPeriod time.Duration

	// Sessions
	SessionIdleTTL time.Duration
	MaxSessions    int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables, after loading a .env file
// from the working directory when one exists.
func Load() *Config {
	return load(".env")
}

// load reads envFile first. Variables already set in the environment win.
func load(envFile string) *Config {
	_ = godotenv.Load(envFile)

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS"),

		// Session and auth
		AuthEnabled: getBoolEnv("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Remote analysis services
		UseCaseURL:           getEnv("USECASE_URL", "http://localhost:8000/ask/"),
		ReverseURL:           getEnv("REVERSE_URL", "https://isdb-chatbot.onrender.com/process_fas"),
		EnhancementURL:       getEnv("ENHANCEMENT_URL", "http://localhost:8000"),
		ComplianceURL:        getEnv("COMPLIANCE_URL", "http://localhost:8001/api/compliance/analyze"),
		EnhancementPollDelay: getDurationEnv("ENHANCEMENT_POLL_DELAY", 2*time.Second),
		ResponderTimeout:     getDurationEnv("RESPONDER_TIMEOUT", 0),
		ResponderBackend:     strings.ToLower(getEnv("RESPONDER_BACKEND", BackendRemote)),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		LLMModel:        getEnv("LLM_MODEL", ""),

		// NATS
		NATSEnabled:      getBoolEnv("NATS_ENABLED", false),
		NATSURL:          getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:       getEnv("NATS_CA_FILE", ""),
		NATSCertFile:     getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:      getEnv("NATS_KEY_FILE", ""),
		NATSToken:        getEnv("NATS_TOKEN", ""),
		NATSStreamMaxAge: getDurationEnv("NATS_STREAM_MAX_AGE", 7*24*time.Hour),

		// Attachments
		AttachmentStore:    strings.ToLower(getEnv("ATTACHMENT_STORE", AttachmentStoreMemory)),
		MaxUploadBytes:     int64(getIntEnv("MAX_UPLOAD_BYTES", 10<<20)),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3Bucket:           getEnv("S3_BUCKET", "fasdesk"),
		S3KeyPrefix:        getEnv("S3_KEY_PREFIX", "uploads/"),
		SeedSamples:        getBoolEnv("SEED_SAMPLES", true),
		SSEHeartbeatPeriod: getDurationEnv("SSE_HEARTBEAT", 30*time.Second),

		// Sessions
		SessionIdleTTL: getDurationEnv("SESSION_IDLE_TTL", 24*time.Hour),
		MaxSessions:    getIntEnv("MAX_SESSIONS", 10000),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.ResponderBackend {
	case BackendRemote:
	case BackendLLM:
		if c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("RESPONDER_BACKEND=llm needs ANTHROPIC_API_KEY or OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, errors.New("RESPONDER_BACKEND must be remote or llm"))
	}

	switch c.AttachmentStore {
	case AttachmentStoreMemory:
	case AttachmentStoreS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("ATTACHMENT_STORE=s3 needs S3_BUCKET"))
		}
	default:
		errs = append(errs, errors.New("ATTACHMENT_STORE must be memory or s3"))
	}

	if c.AuthEnabled && c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_ENABLED needs JWT_SECRET"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
