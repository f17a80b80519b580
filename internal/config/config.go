package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// CollectionName is the vector store collection every document is indexed into.
const CollectionName = "pdfchat"

const (
	PipelineEcho   = "echo"
	PipelineInject = "inject"
	PipelineRAG    = "rag"

	ProviderEndpoint = "endpoint"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"

	QdrantModeLocal = "local"
	QdrantModeCloud = "cloud"
)

type Config struct {
	// Server
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"`

	// Redis holds sessions, the ingest queue and pub/sub
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Database is optional; history archives are skipped without it
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Sessions
	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// Storage
	StoragePath string `envconfig:"STORAGE_PATH" default:"./uploads"`
	HistoryPath string `envconfig:"HISTORY_PATH" default:"history.json"`

	// Chat pipeline
	Pipeline       string        `envconfig:"PDFCHAT_PIPELINE" default:"rag"`
	LLMProvider    string        `envconfig:"PDFCHAT_LLM_PROVIDER" default:"endpoint"`
	LLMURL         string        `envconfig:"PDFCHAT_LLM_URL"`
	LLMModel       string        `envconfig:"PDFCHAT_LLM_MODEL" default:"cyberagent/calm2-7b-chat"`
	MaxNewTokens   int           `envconfig:"PDFCHAT_MAX_NEW_TOKENS" default:"3072"`
	ReplayInterval time.Duration `envconfig:"PDFCHAT_REPLAY_INTERVAL" default:"10ms"`
	PresetFile     string        `envconfig:"PDFCHAT_PRESET_FILE"`

	// OpenAI (embeddings, optional chat provider)
	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIEmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-ada-002"`

	// Gemini AI
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Vector store
	QdrantMode   string `envconfig:"QDRANT_MODE" default:"local"`
	QdrantURL    string `envconfig:"QDRANT_URL"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY"`
	QdrantPath   string `envconfig:"QDRANT_PATH" default:"./local_qdrant"`

	// Retrieval
	RetrieveK    int `envconfig:"RETRIEVE_K" default:"4"`
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"0"`

	// Workers
	WorkerCount int `envconfig:"WORKER_COUNT" default:"2"`

	// Rate limit in ulule/limiter format, e.g. "30-M"
	RateLimit string `envconfig:"RATE_LIMIT" default:"30-M"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Frontend
	FrontendURL string `envconfig:"FRONTEND_URL" default:"*"`
}

// Load reads .env (if present) and the process environment into a Config
// for the HTTP server, which needs SESSION_SECRET.
func Load() (*Config, error) {
	cfg, err := LoadWithoutSession()
	if err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("please set the SESSION_SECRET environment variable")
	}
	return cfg, nil
}

// LoadWithoutSession is Load for commands that never issue sessions.
func LoadWithoutSession() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option combinations that must abort startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.Pipeline {
	case PipelineEcho, PipelineInject, PipelineRAG:
	default:
		errs = append(errs, fmt.Errorf("unknown pipeline %q (want echo, inject or rag)", c.Pipeline))
	}

	switch c.LLMProvider {
	case ProviderEndpoint, ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q (want endpoint, openai or gemini)", c.LLMProvider))
	}

	switch c.QdrantMode {
	case QdrantModeLocal:
	case QdrantModeCloud:
		if c.QdrantURL == "" || c.QdrantAPIKey == "" {
			errs = append(errs, errors.New("please set the QDRANT_URL and QDRANT_API_KEY environment variables"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QDRANT_MODE %q (want local or cloud)", c.QdrantMode))
	}

	if c.RetrieveK <= 0 {
		errs = append(errs, errors.New("RETRIEVE_K must be positive"))
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive and larger than CHUNK_OVERLAP"))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether cookies should be marked secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
