package repository

import (
	"context"
	"fmt"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository defines the interface for chunk persistence
type ChunkRepository interface {
	// ReplaceForDocument drops the previous chunks of the document and stores chunks.
	ReplaceForDocument(ctx context.Context, documentID string, chunks []entity.Chunk) error
	// GetByIDs returns the chunks that still exist, in the order of ids.
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

var _ ChunkRepository = &ChunkPostgres{}

// ChunkPostgres implements ChunkRepository using PostgreSQL
type ChunkPostgres struct {
	db *pgxpool.Pool
}

func NewChunkPostgres(db *pgxpool.Pool) *ChunkPostgres {
	return &ChunkPostgres{db: db}
}

func (r *ChunkPostgres) ReplaceForDocument(ctx context.Context, documentID string, chunks []entity.Chunk) error {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
			return fmt.Errorf("delete old chunks: %w", err)
		}

		rows := make([][]any, len(chunks))
		for i, ch := range chunks {
			rows[i] = []any{ch.ID, docID, ch.Sequence, ch.Text, ch.CharStart, ch.CharEnd}
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"chunks"},
			[]string{"id", "document_id", "sequence", "text", "char_start", "char_end"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}

		return nil
	})
}

func (r *ChunkPostgres) GetByIDs(ctx context.Context, ids []string) ([]*entity.Chunk, error) {
	if len(ids) == 0 {
		return []*entity.Chunk{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, sequence, text, char_start, char_end
		FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*entity.Chunk, len(ids))
	for rows.Next() {
		var (
			ch    entity.Chunk
			docID uuid.UUID
		)
		if err := rows.Scan(&ch.ID, &docID, &ch.Sequence, &ch.Text, &ch.CharStart, &ch.CharEnd); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		ch.DocumentID = docID.String()
		found[ch.ID] = &ch
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chunks := make([]*entity.Chunk, 0, len(found))
	for _, id := range ids {
		if ch, ok := found[id]; ok {
			chunks = append(chunks, ch)
		}
	}

	return chunks, nil
}

func (r *ChunkPostgres) DeleteByDocument(ctx context.Context, documentID string) error {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	return nil
}
