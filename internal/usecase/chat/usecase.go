package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/index"
	"github.com/futig/docchat-backend/internal/pkg/logger"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	"github.com/futig/docchat-backend/internal/repository"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Config tunes retrieval and session behaviour.
type Config struct {
	K             int
	HistoryWindow int
	PreviewLength int
	TitleLength   int
	EmptyPolicy   string
}

// ChatUsecase answers questions over the indexed documents and keeps chat sessions.
type ChatUsecase struct {
	sessions  repository.SessionRepository
	chunkRepo repository.ChunkRepository
	docRepo   repository.DocumentRepository
	embedder  Embedder
	index     Searcher
	generator Generator
	documents Documents
	validator *validator.Validator
	formatter FormatterFactory
	cfg       Config

	// newSessionMu makes the empty-session check and the create one step.
	newSessionMu sync.Mutex
	logger       *zap.Logger
}

// NewUsecase creates a new chat use case
func NewUsecase(
	sessions repository.SessionRepository,
	chunkRepo repository.ChunkRepository,
	docRepo repository.DocumentRepository,
	embedder Embedder,
	index Searcher,
	generator Generator,
	documents Documents,
	validator *validator.Validator,
	formatter FormatterFactory,
	cfg Config,
	logger *zap.Logger,
) *ChatUsecase {
	if cfg.K < 1 {
		cfg.K = 3
	}
	if cfg.PreviewLength < 1 {
		cfg.PreviewLength = 200
	}
	if cfg.TitleLength < 1 {
		cfg.TitleLength = 50
	}
	if cfg.EmptyPolicy == "" {
		cfg.EmptyPolicy = config.EmptySessionPolicyReject
	}

	return &ChatUsecase{
		sessions:  sessions,
		chunkRepo: chunkRepo,
		docRepo:   docRepo,
		embedder:  embedder,
		index:     index,
		generator: generator,
		documents: documents,
		validator: validator,
		formatter: formatter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Query answers a question from the most similar document passages and records the
// exchange in the session. Unknown sessions are created once the answer is ready.
func (uc *ChatUsecase) Query(ctx context.Context, req entity.QueryRequest) (*entity.Answer, error) {
	if err := uc.validator.ValidateQuery(&req); err != nil {
		return nil, err
	}

	var session *entity.Session
	if req.SessionID != nil {
		ctx = logger.AddFields(ctx, zap.String("session_id", *req.SessionID))

		s, err := uc.sessions.Get(ctx, *req.SessionID)
		switch {
		case err == nil:
			session = s
		case errors.Is(err, entity.ErrSessionNotFound):
			ctxzap.Info(ctx, "unknown session, a new one will be created")
		default:
			return nil, fmt.Errorf("get session: %w", err)
		}
	}

	if !uc.index.IsAvailable() {
		return nil, entity.ErrNoDocumentsIndexed
	}

	vectors, err := uc.embedder.Embed(ctx, []string{req.Message})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w: got %d vectors", entity.ErrEmbeddingService, len(vectors))
	}

	hits, err := uc.index.Search(ctx, vectors[0], uc.cfg.K, uc.embedder.ModelTag())
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	passages, sources, err := uc.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}

	ctxzap.Debug(ctx, "context retrieved", zap.Int("hits", len(hits)), zap.Int("passages", len(passages)))
	if len(passages) == 0 {
		// Every hit vanished between search and hydration.
		return nil, entity.ErrNoDocumentsIndexed
	}

	var history []entity.Message
	if session != nil {
		history = lastMessages(session.Messages, uc.cfg.HistoryWindow)
	}
	prompt := buildPrompt(passages, history, req.Message)

	// The generation call is not cut short by a disconnect; its result is dropped instead.
	detached := logger.Detach(ctx)
	response, err := uc.generator.Generate(detached, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if err := ctx.Err(); err != nil {
		ctxzap.Warn(ctx, "client went away before the answer was ready, discarding it")
		return nil, err
	}

	if session == nil {
		session, err = uc.createSession(detached, entity.DefaultSessionTitle)
		if err != nil {
			return nil, err
		}
	}

	var title *string
	if session.Title == entity.DefaultSessionTitle && len(session.Messages) == 0 {
		t := entity.TitleFromMessage(req.Message, uc.cfg.TitleLength)
		title = &t
	}

	now := time.Now()
	_, err = uc.sessions.AppendMessages(detached, session.ID, title,
		entity.Message{
			Role:      entity.MessageRoleUser,
			Content:   req.Message,
			CreatedAt: now,
		},
		entity.Message{
			Role:      entity.MessageRoleAssistant,
			Content:   response,
			Sources:   sources,
			CreatedAt: now,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("append messages: %w", err)
	}

	ctxzap.Info(ctx, "query answered", zap.String("session_id", session.ID), zap.Int("source_count", len(sources)))

	return &entity.Answer{
		Response:  response,
		Sources:   sources,
		SessionID: session.ID,
	}, nil
}

// hydrate loads the chunk text and filename of every hit. Hits whose chunk or
// document disappeared in the meantime are dropped.
func (uc *ChatUsecase) hydrate(ctx context.Context, hits []index.Hit) ([]passage, []entity.Source, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}

	chunks, err := uc.chunkRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load chunks: %w", err)
	}

	byID := make(map[string]*entity.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	filenames := make(map[string]string)
	passages := make([]passage, 0, len(hits))
	sources := make([]entity.Source, 0, len(hits))

	for _, h := range hits {
		chunk, ok := byID[h.ChunkID]
		if !ok {
			continue
		}

		filename, ok := filenames[h.DocumentID]
		if !ok {
			doc, err := uc.docRepo.GetByID(ctx, h.DocumentID)
			switch {
			case errors.Is(err, entity.ErrDocumentNotFound):
				continue
			case err != nil:
				return nil, nil, fmt.Errorf("get document: %w", err)
			}
			filename = doc.Filename
			filenames[h.DocumentID] = filename
		}

		passages = append(passages, passage{filename: filename, text: chunk.Text})
		sources = append(sources, entity.Source{
			DocumentID: h.DocumentID,
			Filename:   filename,
			ChunkID:    h.ChunkID,
			Score:      h.Score,
			Preview:    preview(chunk.Text, uc.cfg.PreviewLength),
		})
	}

	return passages, sources, nil
}

// NewSession opens a chat session. When an empty one is already open the configured
// policy either rejects the request or hands back the existing session.
func (uc *ChatUsecase) NewSession(ctx context.Context, req entity.NewSessionRequest) (*entity.Session, error) {
	if err := uc.validator.ValidateNewSession(&req); err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = entity.DefaultSessionTitle
	}

	uc.newSessionMu.Lock()
	defer uc.newSessionMu.Unlock()

	existing, err := uc.sessions.FindEmpty(ctx)
	switch {
	case err == nil:
		if uc.cfg.EmptyPolicy == config.EmptySessionPolicyRedirect {
			ctxzap.Info(ctx, "redirecting to existing empty session", zap.String("session_id", existing.ID))
			return existing, nil
		}
		return nil, entity.ErrDuplicateEmptySession
	case !errors.Is(err, entity.ErrSessionNotFound):
		return nil, fmt.Errorf("find empty session: %w", err)
	}

	return uc.createSession(ctx, title)
}

func (uc *ChatUsecase) createSession(ctx context.Context, title string) (*entity.Session, error) {
	session, evicted, err := uc.sessions.Create(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if len(evicted) > 0 {
		ctxzap.Info(ctx, "evicted least recently updated sessions", zap.Strings("session_ids", evicted))
	}
	ctxzap.Info(ctx, "session created", zap.String("session_id", session.ID))

	return session, nil
}

func (uc *ChatUsecase) ListSessions(ctx context.Context) ([]*entity.SessionSummary, error) {
	sessions, err := uc.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (uc *ChatUsecase) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	return uc.sessions.Get(ctx, id)
}

func (uc *ChatUsecase) DeleteSession(ctx context.Context, id string) error {
	if err := uc.sessions.Delete(ctx, id); err != nil {
		return err
	}
	ctxzap.Info(ctx, "session deleted", zap.String("session_id", id))
	return nil
}

// ClearHistory deletes every session and returns how many were removed.
func (uc *ChatUsecase) ClearHistory(ctx context.Context) (int, error) {
	deleted, err := uc.sessions.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	ctxzap.Info(ctx, "chat history cleared", zap.Int("deleted", deleted))
	return deleted, nil
}

// ExportSession renders the session transcript in the requested format.
func (uc *ChatUsecase) ExportSession(ctx context.Context, id string, format entity.ExportFormat) (*entity.ExportedFile, error) {
	session, err := uc.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := uc.formatter.Create(format)
	if err != nil {
		return nil, err
	}

	data, err := f.Format(session.Title, transcript(session))
	if err != nil {
		return nil, fmt.Errorf("format session: %w", err)
	}

	name := session.ID
	if len(name) > 8 {
		name = name[:8]
	}

	return &entity.ExportedFile{
		Filename:    "chat_" + name + f.FileExtension(),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

func (uc *ChatUsecase) Status(ctx context.Context) (*entity.VectorStoreStatus, error) {
	return uc.documents.Status(ctx)
}

// Refresh reloads the index from persisted embeddings.
func (uc *ChatUsecase) Refresh(ctx context.Context) (int, error) {
	return uc.documents.Refresh(ctx)
}
