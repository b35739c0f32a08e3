package document

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"sync"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// keyedMutex hands out one mutex per key and forgets it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func contentTypeFor(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// failureReason is the message stored on a failed document.
func failureReason(err error) *string {
	var reason string
	switch {
	case errors.Is(err, entity.ErrUnsupportedFormat):
		reason = "unsupported document format"
	case errors.Is(err, entity.ErrEmbeddingService):
		reason = "embedding service unavailable"
	default:
		reason = err.Error()
	}
	return &reason
}

// markFailed drops whatever the document had indexed and records the failure.
func (uc *DocumentUsecase) markFailed(ctx context.Context, doc *entity.Document, cause error) {
	uc.index.RemoveDocument(doc.ID)
	uc.recordFailure(ctx, doc, cause)
}

// recordFailure is markFailed without touching the live index. Reprocess uses it
// and lets the final rebuild drop the document.
func (uc *DocumentUsecase) recordFailure(ctx context.Context, doc *entity.Document, cause error) {
	if err := uc.embeddingRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		ctxzap.Error(ctx, "failed to delete embeddings of failed document", zap.Error(err))
	}
	if err := uc.chunkRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		ctxzap.Error(ctx, "failed to delete chunks of failed document", zap.Error(err))
	}

	reason := failureReason(cause)
	if err := uc.docRepo.UpdateStatus(ctx, doc.ID, entity.DocumentStatusFailed, reason); err != nil {
		ctxzap.Error(ctx, "failed to mark document as failed", zap.Error(err))
	}
	doc.Status = entity.DocumentStatusFailed
	doc.Error = reason

	ctxzap.Warn(ctx, "document ingestion failed",
		zap.String("filename", doc.Filename),
		zap.Error(cause),
	)
}

// purge removes every trace of doc: index entries first so queries stop seeing it.
func (uc *DocumentUsecase) purge(ctx context.Context, doc *entity.Document) error {
	removed := uc.index.RemoveDocument(doc.ID)

	if err := uc.embeddingRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := uc.chunkRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := uc.files.Delete(ctx, doc.Filename); err != nil {
		return err
	}
	if err := uc.docRepo.Delete(ctx, doc.ID); err != nil && !errors.Is(err, entity.ErrDocumentNotFound) {
		return err
	}

	ctxzap.Info(ctx, "document removed",
		zap.String("filename", doc.Filename),
		zap.Int("index_entries", removed),
	)

	return nil
}
