package builder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/futig/docchat-backend/internal/api"
	chatapi "github.com/futig/docchat-backend/internal/api/chat"
	documentapi "github.com/futig/docchat-backend/internal/api/document"
	"github.com/futig/docchat-backend/internal/chunker"
	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/index"
	"github.com/futig/docchat-backend/internal/integration/embedding"
	"github.com/futig/docchat-backend/internal/integration/llm"
	"github.com/futig/docchat-backend/internal/pkg/extractor"
	"github.com/futig/docchat-backend/internal/pkg/formatter"
	"github.com/futig/docchat-backend/internal/pkg/logger"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	"github.com/futig/docchat-backend/internal/repository"
	"github.com/futig/docchat-backend/internal/repository/memory"
	"github.com/futig/docchat-backend/internal/usecase/chat"
	"github.com/futig/docchat-backend/internal/usecase/document"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unidoc/unioffice/common/license"
	"go.uber.org/zap"
)

// embedder is what both pipelines need from an embedding connector.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelTag() string
}

type repositories struct {
	documents  repository.DocumentRepository
	chunks     repository.ChunkRepository
	embeddings repository.EmbeddingRepository
	sessions   repository.SessionRepository
}

func Build() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zl, err := setupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	return build(context.Background(), cfg, zl)
}

func build(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*App, error) {
	zl.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
		zap.String("storage_backend", cfg.StorageBackend),
	)

	var db *pgxpool.Pool
	var repos repositories

	switch cfg.StorageBackend {
	case config.StorageBackendPostgres:
		var err error
		db, err = setupDatabase(ctx, cfg, zl)
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}

		zl.Info("Running database migrations")
		if err := repository.RunMigrations(repository.DefaultMigrationsSource, cfg.DatabaseURL); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		zl.Info("Database migrations completed successfully")

		repos = repositories{
			documents:  repository.NewDocumentPostgres(db),
			chunks:     repository.NewChunkPostgres(db),
			embeddings: repository.NewEmbeddingPostgres(db),
			sessions:   repository.NewSessionPostgres(db, cfg.SessionCfg.MaxSessions),
		}
	default:
		zl.Warn("Using in-memory storage, documents and sessions are lost on restart")
		repos = repositories{
			documents:  memory.NewDocumentStore(),
			chunks:     memory.NewChunkStore(),
			embeddings: memory.NewEmbeddingStore(),
			sessions:   memory.NewSessionStore(cfg.SessionCfg.MaxSessions),
		}
	}
	zl.Info("Repositories initialized")

	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	if cfg.UnidocLicenseKey != "" {
		if err := license.SetMeteredKey(cfg.UnidocLicenseKey); err != nil {
			closeDB()
			return nil, fmt.Errorf("set unioffice license: %w", err)
		}
	}

	files, err := repository.NewLocalFileStorage(cfg.UploadDir)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("setup file storage: %w", err)
	}

	embeddingConnector, generator := setupConnectors(cfg, zl)
	zl.Info("Connectors initialized",
		zap.String("embedding_model", embeddingConnector.ModelTag()),
	)

	fileValidator := validator.NewValidator(cfg.FileUploadCfg)
	vectorIndex := index.New()

	documentUC := document.NewUsecase(
		repos.documents,
		repos.chunks,
		repos.embeddings,
		files,
		extractor.NewRegistry(),
		chunker.New(
			chunker.WithChunkSize(cfg.ChunkingCfg.Size),
			chunker.WithOverlap(cfg.ChunkingCfg.Overlap),
		),
		embeddingConnector,
		vectorIndex,
		document.Config{
			Workers:         cfg.IngestionCfg.Workers,
			BatchSize:       cfg.EmbeddingCfg.BatchSize,
			DuplicatePolicy: cfg.IngestionCfg.DuplicatePolicy,
		},
		zl,
	)

	chatUC := chat.NewUsecase(
		repos.sessions,
		repos.chunks,
		repos.documents,
		embedding.NewCachedEmbedder(embeddingConnector, cfg.EmbeddingCfg.CacheTTL),
		vectorIndex,
		generator,
		documentUC,
		fileValidator,
		formatter.NewFactory(),
		chat.Config{
			K:             cfg.RetrievalCfg.K,
			HistoryWindow: cfg.RetrievalCfg.HistoryWindow,
			PreviewLength: cfg.RetrievalCfg.PreviewLength,
			TitleLength:   cfg.SessionCfg.TitleLength,
			EmptyPolicy:   cfg.SessionCfg.EmptyPolicy,
		},
		zl,
	)
	zl.Info("Use cases initialized")

	// Serve the vectors persisted by a previous run.
	chunks, err := documentUC.Refresh(logger.WithAction(logger.Background(zl), "HydrateIndex"))
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("hydrate index: %w", err)
	}
	zl.Info("Embedding index hydrated", zap.Int("chunk_count", chunks))

	documentHandler := documentapi.NewHandler(documentUC, cfg.FileUploadCfg, fileValidator)
	chatHandler := chatapi.NewHandler(chatUC)
	zl.Info("API handlers initialized")

	router := api.SetupRouter(cfg, documentHandler, chatHandler, zl)
	zl.Info("HTTP router configured", zap.String("api_prefix", cfg.APIPrefix))

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	zl.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		index:  vectorIndex,
		db:     db,
		logger: zl,
	}, nil
}

// setupConnectors picks the embedding and generation backends. Mocks replace both.
func setupConnectors(cfg *config.Config, zl *zap.Logger) (embedder, chat.Generator) {
	if cfg.EnableMocks {
		zl.Info("Using mock connectors for external services")
		return embedding.NewHashEmbedder(cfg.EmbeddingCfg.Dimension, zl), llm.NewMockConnector(zl)
	}

	var emb embedder
	switch cfg.EmbeddingCfg.Provider {
	case config.EmbeddingProviderOllama:
		emb = embedding.NewOllamaConnector(cfg.EmbeddingCfg, zl)
	case config.EmbeddingProviderHash:
		emb = embedding.NewHashEmbedder(cfg.EmbeddingCfg.Dimension, zl)
	default:
		emb = embedding.NewOpenAIConnector(cfg.EmbeddingCfg, zl)
	}

	var gen chat.Generator
	switch cfg.LLMCfg.Provider {
	case config.LLMProviderHTTP:
		gen = llm.NewConnector(cfg.LLMCfg, zl)
	case config.LLMProviderMock:
		gen = llm.NewMockConnector(zl)
	default:
		gen = llm.NewOpenAIConnector(cfg.LLMCfg, zl)
	}

	zl.Info("Using real connectors for external services",
		zap.String("embedding_provider", cfg.EmbeddingCfg.Provider),
		zap.String("llm_provider", cfg.LLMCfg.Provider),
	)

	return emb, gen
}
