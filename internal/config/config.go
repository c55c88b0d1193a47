package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/suPer8Hu/agent-services/internal/ai"
)

type Config struct {
	// Gemini (the key is optional: without it the LLM endpoints degrade)
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	// AI provider
	AIProvider        string `env:"AI_PROVIDER" envDefault:"gemini"`
	OllamaBaseURL     string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel       string `env:"OLLAMA_MODEL" envDefault:"llama3:latest"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" envDefault:"openrouter/auto"`
	OpenRouterSiteURL string `env:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string `env:"OPENROUTER_APP_NAME"`
	LLMTimeoutSeconds int    `env:"LLM_TIMEOUT" envDefault:"90"`

	// service
	Host        string   `env:"HOST" envDefault:"localhost"`
	ChatPort    int      `env:"CHAT_PORT" envDefault:"8003"`
	TaskPort    int      `env:"TASK_PORT" envDefault:"8004"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"INFO"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// conversations
	ConversationTTLSeconds      int    `env:"CONVERSATION_TTL" envDefault:"3600"`
	MaxContextMessages          int    `env:"MAX_CONTEXT_MESSAGES" envDefault:"20"`
	SessionSweepIntervalSeconds int    `env:"SESSION_SWEEP_INTERVAL" envDefault:"300"`
	SessionBackend              string `env:"SESSION_BACKEND" envDefault:"memory"`

	// redis (SESSION_BACKEND=redis)
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"babelbot"`

	// reference data
	DatabaseURL             string `env:"DATABASE_URL"`
	BackendAPIURL           string `env:"BACKEND_API_URL" envDefault:"http://localhost:3000"`
	ReferenceSource         string `env:"REFERENCE_SOURCE" envDefault:"api"`
	DataPollIntervalSeconds int    `env:"DATA_POLL_INTERVAL" envDefault:"300"`
	DataCacheTTLSeconds     int    `env:"DATA_CACHE_TTL" envDefault:"300"`
	DataFetchTimeoutSeconds int    `env:"DATA_FETCH_TIMEOUT" envDefault:"30"`

	// extraction
	MinConfidenceScore     float64 `env:"MIN_CONFIDENCE_SCORE" envDefault:"0.7"`
	ClarificationThreshold float64 `env:"CLARIFICATION_THRESHOLD" envDefault:"0.5"`
	ServiceJWTSecret       string  `env:"SERVICE_JWT_SECRET"`

	// rabbitMQ (empty URL disables extraction events)
	RabbitURL         string `env:"RABBIT_URL"`
	RabbitQueue       string `env:"RABBIT_QUEUE" envDefault:"task_extractions"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxContextMessages <= 0 {
		cfg.MaxContextMessages = 20
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}
	if cfg.ClarificationThreshold > cfg.MinConfidenceScore {
		return Config{}, fmt.Errorf("CLARIFICATION_THRESHOLD (%.2f) must not exceed MIN_CONFIDENCE_SCORE (%.2f)",
			cfg.ClarificationThreshold, cfg.MinConfidenceScore)
	}
	return cfg, nil
}

func (c Config) ConversationTTL() time.Duration {
	return seconds(c.ConversationTTLSeconds, time.Hour)
}

func (c Config) SessionSweepInterval() time.Duration {
	return seconds(c.SessionSweepIntervalSeconds, 5*time.Minute)
}

func (c Config) DataPollInterval() time.Duration {
	return seconds(c.DataPollIntervalSeconds, 5*time.Minute)
}

func (c Config) DataCacheTTL() time.Duration {
	return seconds(c.DataCacheTTLSeconds, 5*time.Minute)
}

func (c Config) DataFetchTimeout() time.Duration {
	return seconds(c.DataFetchTimeoutSeconds, 30*time.Second)
}

func (c Config) LLMTimeout() time.Duration {
	return seconds(c.LLMTimeoutSeconds, 90*time.Second)
}

func (c Config) ChatAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ChatPort)
}

func (c Config) TaskAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.TaskPort)
}

// AISettings maps the provider variables onto the ai registry settings.
func (c Config) AISettings() ai.Settings {
	return ai.Settings{
		GeminiAPIKey:      c.GeminiAPIKey,
		GeminiModel:       c.GeminiModel,
		OllamaBaseURL:     c.OllamaBaseURL,
		OllamaModel:       c.OllamaModel,
		OpenRouterBaseURL: c.OpenRouterBaseURL,
		OpenRouterAPIKey:  c.OpenRouterAPIKey,
		OpenRouterModel:   c.OpenRouterModel,
		OpenRouterSiteURL: c.OpenRouterSiteURL,
		OpenRouterAppName: c.OpenRouterAppName,
		Timeout:           c.LLMTimeout(),
	}
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
