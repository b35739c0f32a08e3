package repository

import (
	"context"
	"fmt"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository persists chunk vectors so the index can be rebuilt after a restart.
type EmbeddingRepository interface {
	// SaveForDocument replaces every embedding of the document.
	SaveForDocument(ctx context.Context, documentID string, embeddings []entity.Embedding) error
	// ListAll returns all embeddings grouped by document, chunks in sequence order.
	ListAll(ctx context.Context) ([]entity.Embedding, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

var _ EmbeddingRepository = &EmbeddingPostgres{}

// EmbeddingPostgres implements EmbeddingRepository on a pgvector column.
type EmbeddingPostgres struct {
	db *pgxpool.Pool
}

func NewEmbeddingPostgres(db *pgxpool.Pool) *EmbeddingPostgres {
	return &EmbeddingPostgres{db: db}
}

func (r *EmbeddingPostgres) SaveForDocument(ctx context.Context, documentID string, embeddings []entity.Embedding) error {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM embeddings WHERE document_id = $1`, docID); err != nil {
			return fmt.Errorf("delete old embeddings: %w", err)
		}

		batch := &pgx.Batch{}
		for _, e := range embeddings {
			batch.Queue(`
				INSERT INTO embeddings (chunk_id, document_id, model, embedding)
				VALUES ($1, $2, $3, $4::vector)`,
				e.ChunkID, docID, e.Model, pgvector.NewVector(e.Vector),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert embeddings: %w", err)
		}

		return nil
	})
}

func (r *EmbeddingPostgres) ListAll(ctx context.Context) ([]entity.Embedding, error) {
	rows, err := r.db.Query(ctx, `
		SELECT e.chunk_id, e.document_id, e.model, e.embedding::text
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		ORDER BY e.document_id, c.sequence`)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	embeddings := make([]entity.Embedding, 0)
	for rows.Next() {
		var (
			e      entity.Embedding
			docID  uuid.UUID
			raw    string
			vector pgvector.Vector
		)
		if err := rows.Scan(&e.ChunkID, &docID, &e.Model, &raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if err := vector.Scan(raw); err != nil {
			return nil, fmt.Errorf("parse embedding of chunk %s: %w", e.ChunkID, err)
		}
		e.DocumentID = docID.String()
		e.Vector = vector.Slice()
		embeddings = append(embeddings, e)
	}

	return embeddings, rows.Err()
}

func (r *EmbeddingPostgres) DeleteByDocument(ctx context.Context, documentID string) error {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM embeddings WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	return nil
}
