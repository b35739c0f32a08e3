package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/docchat-backend/internal/pkg/retry"
	"github.com/joho/godotenv"
)

const (
	StorageBackendMemory   = "memory"
	StorageBackendPostgres = "postgres"

	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderHash   = "hash"

	LLMProviderOpenAI = "openai"
	LLMProviderHTTP   = "http"
	LLMProviderMock   = "mock"

	DuplicatePolicyReject    = "reject"
	DuplicatePolicyOverwrite = "overwrite"

	EmptySessionPolicyReject   = "reject"
	EmptySessionPolicyRedirect = "redirect"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr        string        `env:"SERVER_ADDR" envDefault:":8000"`
	APIPrefix         string        `env:"API_PREFIX" envDefault:"/api"`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"5m"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout    time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"5m"`
	CORSAllowedOrigin string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	// Storage configuration
	StorageBackend      string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	UploadDir           string        `env:"UPLOAD_DIR" envDefault:"uploads"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	EmbeddingCfg EmbeddingConfig `envPrefix:"EMBEDDING_"`
	LLMCfg       LLMConfig       `envPrefix:"LLM_"`

	// Retrieval pipeline configuration
	ChunkingCfg  ChunkingConfig  `envPrefix:"CHUNK_"`
	RetrievalCfg RetrievalConfig `envPrefix:"RETRIEVAL_"`
	IngestionCfg IngestionConfig `envPrefix:"INGESTION_"`
	SessionCfg   SessionConfig   `envPrefix:"SESSION_"`

	// Office documents (DOCX extraction and export)
	UnidocLicenseKey string `env:"UNIDOC_LICENSE_API_KEY"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// File upload configuration
	FileUploadCfg FileUploadConfig `envPrefix:"FILE_UPLOAD_"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

type EmbeddingConfig struct {
	HTTPClientConfig
	Provider  string               `env:"PROVIDER" envDefault:"openai"`
	Model     string               `env:"MODEL" envDefault:"text-embedding-3-small"`
	Dimension int                  `env:"DIMENSION" envDefault:"0"`
	BatchSize int                  `env:"BATCH_SIZE" envDefault:"16"`
	RateLimit float64              `env:"RATE_LIMIT" envDefault:"0"` // requests per second, 0 disables
	RateBurst int                  `env:"RATE_BURST" envDefault:"1"`
	CacheTTL  time.Duration        `env:"CACHE_TTL" envDefault:"10m"`
	Retry     pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type LLMConfig struct {
	HTTPClientConfig
	Provider         string               `env:"PROVIDER" envDefault:"openai"`
	Model            string               `env:"MODEL" envDefault:"gpt-4o-mini"`
	GenerateEndpoint string               `env:"GENERATE_ENDPOINT" envDefault:"/generate"`
	Temperature      float32              `env:"TEMPERATURE" envDefault:"0.3"`
	Retry            pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

type ChunkingConfig struct {
	Size    int `env:"SIZE" envDefault:"800"`
	Overlap int `env:"OVERLAP" envDefault:"100"`
}

type RetrievalConfig struct {
	K             int `env:"K" envDefault:"3"`
	HistoryWindow int `env:"HISTORY_WINDOW" envDefault:"10"`
	PreviewLength int `env:"PREVIEW_LENGTH" envDefault:"200"`
}

type IngestionConfig struct {
	Workers         int    `env:"WORKERS" envDefault:"4"`
	DuplicatePolicy string `env:"DUPLICATE_POLICY" envDefault:"reject"`
}

type SessionConfig struct {
	MaxSessions int    `env:"MAX_SESSIONS" envDefault:"50"`
	EmptyPolicy string `env:"EMPTY_POLICY" envDefault:"reject"`
	TitleLength int    `env:"TITLE_LENGTH" envDefault:"50"`
}

// FileUploadConfig holds file upload limits
type FileUploadConfig struct {
	MaxFileSize   int64 `env:"MAX_FILE_SIZE" envDefault:"20971520"`   // 20 MiB
	MaxTotalSize  int64 `env:"MAX_TOTAL_SIZE" envDefault:"104857600"` // 100 MiB
	MaxFileCount  int   `env:"MAX_FILE_COUNT" envDefault:"32"`
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"33554432"` // 32 MiB in memory, rest on disk
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.Environment = *envFlag

	return cfg, nil
}

// Parse reads the configuration from the process environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.StorageBackend {
	case StorageBackendMemory:
	case StorageBackendPostgres:
		if cfg.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
		if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
			errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
		}
		if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
			errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
		}
	default:
		errors = append(errors, fmt.Sprintf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend))
	}

	if !cfg.EnableMocks {
		switch cfg.EmbeddingCfg.Provider {
		case EmbeddingProviderOpenAI, EmbeddingProviderHash:
		case EmbeddingProviderOllama:
			if cfg.EmbeddingCfg.Url == "" {
				errors = append(errors, "EMBEDDING_SERVICE_URL is required for the ollama provider")
			}
		default:
			errors = append(errors, fmt.Sprintf("EMBEDDING_PROVIDER must be openai, ollama or hash, got %q", cfg.EmbeddingCfg.Provider))
		}

		switch cfg.LLMCfg.Provider {
		case LLMProviderOpenAI, LLMProviderMock:
		case LLMProviderHTTP:
			if cfg.LLMCfg.Url == "" {
				errors = append(errors, "LLM_SERVICE_URL is required for the http provider")
			}
		default:
			errors = append(errors, fmt.Sprintf("LLM_PROVIDER must be openai, http or mock, got %q", cfg.LLMCfg.Provider))
		}
	}

	if cfg.EmbeddingCfg.Model == "" {
		errors = append(errors, "EMBEDDING_MODEL must not be empty")
	}

	if cfg.EmbeddingCfg.BatchSize < 1 || cfg.EmbeddingCfg.BatchSize > 2048 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_BATCH_SIZE must be between 1 and 2048, got %d", cfg.EmbeddingCfg.BatchSize))
	}

	if cfg.EmbeddingCfg.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_RATE_LIMIT must not be negative, got %v", cfg.EmbeddingCfg.RateLimit))
	}

	if cfg.ChunkingCfg.Size < 1 {
		errors = append(errors, fmt.Sprintf("CHUNK_SIZE must be positive, got %d", cfg.ChunkingCfg.Size))
	}

	if cfg.ChunkingCfg.Overlap < 0 || cfg.ChunkingCfg.Overlap >= cfg.ChunkingCfg.Size {
		errors = append(errors, fmt.Sprintf("CHUNK_OVERLAP must be between 0 and CHUNK_SIZE(%d), got %d", cfg.ChunkingCfg.Size, cfg.ChunkingCfg.Overlap))
	}

	if cfg.RetrievalCfg.K < 1 || cfg.RetrievalCfg.K > 50 {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_K must be between 1 and 50, got %d", cfg.RetrievalCfg.K))
	}

	if cfg.RetrievalCfg.HistoryWindow < 0 {
		errors = append(errors, fmt.Sprintf("RETRIEVAL_HISTORY_WINDOW must not be negative, got %d", cfg.RetrievalCfg.HistoryWindow))
	}

	if cfg.IngestionCfg.Workers < 1 || cfg.IngestionCfg.Workers > 64 {
		errors = append(errors, fmt.Sprintf("INGESTION_WORKERS must be between 1 and 64, got %d", cfg.IngestionCfg.Workers))
	}

	if p := cfg.IngestionCfg.DuplicatePolicy; p != DuplicatePolicyReject && p != DuplicatePolicyOverwrite {
		errors = append(errors, fmt.Sprintf("INGESTION_DUPLICATE_POLICY must be reject or overwrite, got %q", p))
	}

	if cfg.SessionCfg.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("SESSION_MAX_SESSIONS must be positive, got %d", cfg.SessionCfg.MaxSessions))
	}

	if p := cfg.SessionCfg.EmptyPolicy; p != EmptySessionPolicyReject && p != EmptySessionPolicyRedirect {
		errors = append(errors, fmt.Sprintf("SESSION_EMPTY_POLICY must be reject or redirect, got %q", p))
	}

	if cfg.FileUploadCfg.MaxFileSize < 1 || cfg.FileUploadCfg.MaxFileCount < 1 {
		errors = append(errors, "FILE_UPLOAD_MAX_FILE_SIZE and FILE_UPLOAD_MAX_FILE_COUNT must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
