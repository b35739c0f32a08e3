package document

import (
	"context"
	"fmt"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ingest runs decode, chunk and embed for doc and persists chunks and embeddings.
// The caller decides how the embeddings reach the index.
func (uc *DocumentUsecase) ingest(ctx context.Context, doc *entity.Document, data []byte) ([]entity.Embedding, error) {
	if err := uc.setStatus(ctx, doc, entity.DocumentStatusDecoding); err != nil {
		return nil, err
	}

	text, err := uc.extractor.Extract(ctx, doc.Filename, data)
	if err != nil {
		return nil, err
	}

	if err := uc.setStatus(ctx, doc, entity.DocumentStatusChunking); err != nil {
		return nil, err
	}

	chunks := uc.chunker.Split(doc.ID, text)
	if err := uc.chunkRepo.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	ctxzap.Debug(ctx, "document chunked", zap.Int("chunk_count", len(chunks)), zap.Int("text_length", len(text)))

	if err := uc.setStatus(ctx, doc, entity.DocumentStatusEmbedding); err != nil {
		return nil, err
	}

	embeddings := uc.embedChunks(ctx, chunks)
	if len(chunks) > 0 && len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no chunk of %s could be embedded", entity.ErrEmbeddingService, doc.Filename)
	}

	if err := uc.embeddingRepo.SaveForDocument(ctx, doc.ID, embeddings); err != nil {
		return nil, fmt.Errorf("save embeddings: %w", err)
	}

	return embeddings, nil
}

// reingest reads the stored bytes of doc and ingests them again.
func (uc *DocumentUsecase) reingest(ctx context.Context, doc *entity.Document) ([]entity.Embedding, error) {
	data, err := uc.files.Read(ctx, doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	embeddings, err := uc.ingest(ctx, doc, data)
	if err != nil {
		return nil, err
	}

	if err := uc.setStatus(ctx, doc, entity.DocumentStatusIndexed); err != nil {
		return nil, err
	}

	return embeddings, nil
}

// embedChunks embeds chunks in batches. A failing batch is retried chunk by chunk;
// chunks that still fail are skipped.
func (uc *DocumentUsecase) embedChunks(ctx context.Context, chunks []entity.Chunk) []entity.Embedding {
	model := uc.embedder.ModelTag()
	embeddings := make([]entity.Embedding, 0, len(chunks))

	for start := 0; start < len(chunks); start += uc.cfg.BatchSize {
		batch := chunks[start:min(start+uc.cfg.BatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("%w: got %d vectors for %d chunks", entity.ErrEmbeddingService, len(vectors), len(batch))
		}
		if err == nil {
			for i, ch := range batch {
				embeddings = append(embeddings, newEmbedding(ch, model, vectors[i]))
			}
			continue
		}

		ctxzap.Warn(ctx, "batch embedding failed, falling back to single chunks",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)

		for _, ch := range batch {
			vectors, err := uc.embedder.Embed(ctx, []string{ch.Text})
			if err != nil || len(vectors) != 1 {
				ctxzap.Warn(ctx, "skipping chunk that could not be embedded",
					zap.String("chunk_id", ch.ID),
					zap.Error(err),
				)
				continue
			}
			embeddings = append(embeddings, newEmbedding(ch, model, vectors[0]))
		}
	}

	if skipped := len(chunks) - len(embeddings); skipped > 0 {
		ctxzap.Warn(ctx, "some chunks were not embedded", zap.Int("skipped", skipped), zap.Int("total", len(chunks)))
	}

	return embeddings
}

func (uc *DocumentUsecase) setStatus(ctx context.Context, doc *entity.Document, status entity.DocumentStatus) error {
	if err := uc.docRepo.UpdateStatus(ctx, doc.ID, status, nil); err != nil {
		return fmt.Errorf("update status to %s: %w", status, err)
	}
	doc.Status = status
	doc.Error = nil
	return nil
}

func newEmbedding(ch entity.Chunk, model string, vector []float32) entity.Embedding {
	return entity.Embedding{
		ChunkID:    ch.ID,
		DocumentID: ch.DocumentID,
		Model:      model,
		Vector:     vector,
	}
}
