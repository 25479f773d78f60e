package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	RateLimitPerMinute int    // Provider-backed requests allowed per minute (0 = unlimited)
	RateLimitBurst     int

	// Gemini (images, edits, video, chat). Optional at boot: a missing key is
	// reported by the credential gate and can be supplied at runtime.
	GeminiKey  string
	ImageModel string
	EditModel  string
	VideoModel string
	ChatModel  string

	// Assistant provider: "gemini" (default) or "openai"
	AssistantProvider string
	OpenAIKey         string
	OpenAIModel       string

	// Video polling
	VideoPollInterval    time.Duration
	VideoMessageInterval time.Duration
	VideoMaxPollDuration time.Duration // 0 = poll until the provider reports done

	// Sessions
	SessionIdleTTL time.Duration

	// Optional infrastructure
	RedisURL    string // Job event fan-out (empty = disabled)
	DatabaseURL string // Generation log (empty = disabled)

	// Logging
	LogLevel       string
	LogFile        string
	LogDevelopment bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:              getEnv("API_PORT", "8080"),
		BackendAPIKey:        getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:       getEnvInt("RATE_LIMIT_BURST", 5),
		GeminiKey:            getEnv("GEMINI_API_KEY", ""),
		ImageModel:           getEnv("IMAGE_MODEL", "imagen-4.0-generate-001"),
		EditModel:            getEnv("EDIT_MODEL", "gemini-2.5-flash-image-preview"),
		VideoModel:           getEnv("VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		ChatModel:            getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		AssistantProvider:    getEnv("ASSISTANT_PROVIDER", "gemini"),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-5-mini"),
		VideoPollInterval:    getEnvDuration("VIDEO_POLL_INTERVAL", 10*time.Second),
		VideoMessageInterval: getEnvDuration("VIDEO_MESSAGE_INTERVAL", 5*time.Second),
		VideoMaxPollDuration: getEnvDuration("VIDEO_MAX_POLL_DURATION", 10*time.Minute),
		SessionIdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		RedisURL:             getEnv("REDIS_URL", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFile:              getEnv("LOG_FILE", ""),
		LogDevelopment:       getEnvBool("LOG_DEVELOPMENT", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field combinations that cannot be fixed with a default.
func (c *Config) Validate() error {
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}
	if c.VideoMessageInterval <= 0 {
		return fmt.Errorf("VIDEO_MESSAGE_INTERVAL must be positive")
	}
	if c.VideoMaxPollDuration < 0 {
		return fmt.Errorf("VIDEO_MAX_POLL_DURATION must not be negative")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}

	switch c.AssistantProvider {
	case "gemini":
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when ASSISTANT_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown ASSISTANT_PROVIDER %q (allowed: gemini, openai)", c.AssistantProvider)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
