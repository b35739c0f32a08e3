package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/logger"
	"github.com/futig/docchat-backend/internal/repository"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	UploadStatusSuccess = "success"
	UploadStatusError   = "error"
)

// Config tunes the ingestion pipeline.
type Config struct {
	Workers         int
	BatchSize       int
	DuplicatePolicy string
}

// DocumentUsecase owns the document collection and keeps the index in step with it.
//
// Uploads and deletes hold mu for reading and serialize per filename, so different
// files ingest in parallel. Reprocess and Refresh hold mu exclusively, so the final
// index rebuild never races an upsert or a delete.
type DocumentUsecase struct {
	docRepo       repository.DocumentRepository
	chunkRepo     repository.ChunkRepository
	embeddingRepo repository.EmbeddingRepository
	files         repository.FileStorage
	extractor     Extractor
	chunker       Chunker
	embedder      Embedder
	index         VectorIndex
	cfg           Config

	mu        sync.RWMutex
	fileLocks *keyedMutex
	logger    *zap.Logger
}

// NewUsecase creates a new document use case
func NewUsecase(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	embeddingRepo repository.EmbeddingRepository,
	files repository.FileStorage,
	extractor Extractor,
	chunker Chunker,
	embedder Embedder,
	index VectorIndex,
	cfg Config,
	logger *zap.Logger,
) *DocumentUsecase {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 16
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = config.DuplicatePolicyReject
	}

	return &DocumentUsecase{
		docRepo:       docRepo,
		chunkRepo:     chunkRepo,
		embeddingRepo: embeddingRepo,
		files:         files,
		extractor:     extractor,
		chunker:       chunker,
		embedder:      embedder,
		index:         index,
		cfg:           cfg,
		fileLocks:     newKeyedMutex(),
		logger:        logger,
	}
}

// Upload stores a file and runs it through the ingestion pipeline.
// It returns the document and the number of indexed chunks.
func (uc *DocumentUsecase) Upload(ctx context.Context, file entity.UploadFile) (*entity.Document, int, error) {
	// A client disconnect must not leave a half-ingested document behind.
	ctx = logger.AddFields(logger.Detach(ctx), zap.String("filename", file.Filename))

	if !uc.extractor.Supports(file.Filename) {
		return nil, 0, fmt.Errorf("upload %s: %w", file.Filename, entity.ErrUnsupportedFormat)
	}

	uc.mu.RLock()
	defer uc.mu.RUnlock()

	unlock := uc.fileLocks.Lock(file.Filename)
	defer unlock()

	existing, err := uc.docRepo.GetByFilename(ctx, file.Filename)
	switch {
	case err == nil:
		if existing.Status != entity.DocumentStatusFailed && uc.cfg.DuplicatePolicy != config.DuplicatePolicyOverwrite {
			return nil, 0, fmt.Errorf("upload %s: %w", file.Filename, entity.ErrDuplicateName)
		}
		if err := uc.purge(ctx, existing); err != nil {
			return nil, 0, fmt.Errorf("replace document: %w", err)
		}
		ctxzap.Info(ctx, "replacing existing document", zap.String("previous_status", string(existing.Status)))
	case !errors.Is(err, entity.ErrDocumentNotFound):
		return nil, 0, fmt.Errorf("get document: %w", err)
	}

	if err := uc.files.Save(ctx, file.Filename, file.Content); err != nil {
		return nil, 0, fmt.Errorf("save file: %w", err)
	}

	doc, err := uc.docRepo.Create(ctx, entity.Document{
		ID:          entity.DocumentID(file.Filename),
		Filename:    file.Filename,
		ContentType: contentTypeFor(file.Filename, file.ContentType),
		ByteSize:    int64(len(file.Content)),
		Status:      entity.DocumentStatusPending,
		UploadedAt:  time.Now(),
	})
	if err != nil {
		_ = uc.files.Delete(ctx, file.Filename)
		return nil, 0, fmt.Errorf("create document: %w", err)
	}

	ctxzap.Info(ctx, "document stored", zap.String("document_id", doc.ID), zap.Int64("size", doc.ByteSize))

	embeddings, err := uc.ingest(ctx, doc, file.Content)
	if err == nil {
		err = uc.index.Upsert(embeddings...)
	}
	if err == nil {
		err = uc.setStatus(ctx, doc, entity.DocumentStatusIndexed)
	}
	if err != nil {
		uc.markFailed(ctx, doc, err)
		return nil, 0, fmt.Errorf("ingest %s: %w", doc.Filename, err)
	}

	ctxzap.Info(ctx, "document indexed", zap.Int("chunk_count", len(embeddings)))

	return doc, len(embeddings), nil
}

// UploadMany ingests several files on the worker pool and reports a result per file.
func (uc *DocumentUsecase) UploadMany(ctx context.Context, files []entity.UploadFile) []entity.UploadResult {
	ctx = logger.Detach(ctx)
	results := make([]entity.UploadResult, len(files))

	var g errgroup.Group
	g.SetLimit(uc.cfg.Workers)

	for i, file := range files {
		g.Go(func() error {
			result := entity.UploadResult{Filename: file.Filename}

			_, chunks, err := uc.Upload(ctx, file)
			if err != nil {
				result.Status = UploadStatusError
				result.Message = err.Error()
			} else {
				result.Status = UploadStatusSuccess
				result.Message = fmt.Sprintf("File uploaded and processed successfully (%d chunks)", chunks)
			}

			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// List returns every document ordered by upload time.
func (uc *DocumentUsecase) List(ctx context.Context) ([]*entity.Document, error) {
	docs, err := uc.docRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Download returns the metadata and raw bytes of a document.
func (uc *DocumentUsecase) Download(ctx context.Context, filename string) (*entity.Document, []byte, error) {
	doc, err := uc.docRepo.GetByFilename(ctx, filename)
	if err != nil {
		return nil, nil, err
	}

	data, err := uc.files.Read(ctx, filename)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}

	return doc, data, nil
}

// Delete removes the document, its chunks, embeddings and index entries before returning.
func (uc *DocumentUsecase) Delete(ctx context.Context, filename string) error {
	ctx = logger.AddFields(logger.Detach(ctx), zap.String("filename", filename))

	uc.mu.RLock()
	defer uc.mu.RUnlock()

	unlock := uc.fileLocks.Lock(filename)
	defer unlock()

	doc, err := uc.docRepo.GetByFilename(ctx, filename)
	if err != nil {
		return err
	}

	if err := uc.purge(ctx, doc); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

// Reprocess re-ingests every stored document and swaps in a freshly built index.
// Per-document failures are counted, not fatal.
func (uc *DocumentUsecase) Reprocess(ctx context.Context) (*entity.ReprocessResult, error) {
	ctx = logger.Detach(ctx)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	docs, err := uc.docRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	result := &entity.ReprocessResult{
		DocumentCount:  len(docs),
		FilesProcessed: []string{},
		FailedFiles:    []string{},
	}

	if len(docs) == 0 {
		if err := uc.index.Rebuild(nil); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
		return result, nil
	}

	ctxzap.Info(ctx, "reprocessing documents", zap.Int("document_count", len(docs)), zap.Int("workers", uc.cfg.Workers))

	perDoc := make([][]entity.Embedding, len(docs))
	failed := make([]bool, len(docs))

	var g errgroup.Group
	g.SetLimit(uc.cfg.Workers)

	for i, doc := range docs {
		g.Go(func() error {
			docCtx := logger.AddFields(ctx, zap.String("filename", doc.Filename))

			embeddings, err := uc.reingest(docCtx, doc)
			if err != nil {
				uc.recordFailure(docCtx, doc, err)
				failed[i] = true
				return nil
			}

			perDoc[i] = embeddings
			return nil
		})
	}
	_ = g.Wait()

	var all []entity.Embedding
	for i, doc := range docs {
		if failed[i] {
			result.FailedFiles = append(result.FailedFiles, doc.Filename)
			continue
		}
		result.FilesProcessed = append(result.FilesProcessed, doc.Filename)
		all = append(all, perDoc[i]...)
	}

	if err := uc.index.Rebuild(all); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}
	result.ChunkCount = uc.index.Size()

	ctxzap.Info(ctx, "reprocessing finished",
		zap.Int("processed", len(result.FilesProcessed)),
		zap.Int("failed", len(result.FailedFiles)),
		zap.Int("chunk_count", result.ChunkCount),
	)

	return result, nil
}

// Refresh rebuilds the index from persisted embeddings without calling the embedder.
// Startup hydration uses the same path.
func (uc *DocumentUsecase) Refresh(ctx context.Context) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	docs, err := uc.docRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	stored, err := uc.embeddingRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list embeddings: %w", err)
	}

	byDoc := make(map[string][]entity.Embedding)
	for _, e := range stored {
		byDoc[e.DocumentID] = append(byDoc[e.DocumentID], e)
	}

	embeddings := make([]entity.Embedding, 0, len(stored))
	for _, doc := range docs {
		if doc.Status != entity.DocumentStatusIndexed {
			continue
		}
		embeddings = append(embeddings, byDoc[doc.ID]...)
	}

	if err := uc.index.Rebuild(embeddings); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	ctxzap.Info(ctx, "index refreshed from storage", zap.Int("chunk_count", uc.index.Size()))

	return uc.index.Size(), nil
}

// Status summarizes what the index currently serves.
func (uc *DocumentUsecase) Status(ctx context.Context) (*entity.VectorStoreStatus, error) {
	docs, err := uc.docRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	indexed := 0
	for _, doc := range docs {
		if doc.Status == entity.DocumentStatusIndexed {
			indexed++
		}
	}

	return &entity.VectorStoreStatus{
		Available:     uc.index.IsAvailable(),
		DocumentCount: indexed,
		ChunkCount:    uc.index.Size(),
	}, nil
}
