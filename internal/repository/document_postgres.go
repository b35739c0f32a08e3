package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository defines the interface for document metadata persistence
type DocumentRepository interface {
	// Create inserts doc and fails with entity.ErrDuplicateName when the filename is taken.
	Create(ctx context.Context, doc entity.Document) (*entity.Document, error)
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	GetByFilename(ctx context.Context, filename string) (*entity.Document, error)
	// List returns documents ordered by upload time, then filename.
	List(ctx context.Context) ([]*entity.Document, error)
	UpdateStatus(ctx context.Context, id string, status entity.DocumentStatus, reason *string) error
	// Delete removes the document together with its chunks and embeddings.
	Delete(ctx context.Context, id string) error
}

var _ DocumentRepository = &DocumentPostgres{}

const uniqueViolation = "23505"

// DocumentPostgres implements DocumentRepository using PostgreSQL
type DocumentPostgres struct {
	db *pgxpool.Pool
}

func NewDocumentPostgres(db *pgxpool.Pool) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

const documentColumns = `id, filename, content_type, byte_size, status, error, uploaded_at, updated_at`

func (r *DocumentPostgres) Create(ctx context.Context, doc entity.Document) (*entity.Document, error) {
	docID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid document ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO documents (id, filename, content_type, byte_size, status, error, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+documentColumns,
		docID, doc.Filename, doc.ContentType, doc.ByteSize, string(doc.Status), doc.Error, doc.UploadedAt,
	)

	created, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("create document %s: %w", doc.Filename, entity.ErrDuplicateName)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	return created, nil
}

func (r *DocumentPostgres) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, entity.ErrDocumentNotFound
	}

	doc, err := scanDocument(r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, docID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

func (r *DocumentPostgres) GetByFilename(ctx context.Context, filename string) (*entity.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE filename = $1`, filename)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

func (r *DocumentPostgres) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at, filename`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*entity.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, status entity.DocumentStatus, reason *string) error {
	docID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1`,
		docID, string(status), reason,
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrDocumentNotFound
	}

	return nil
}

func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	docID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid document ID: %w", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrDocumentNotFound
	}

	return nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		doc    entity.Document
		id     uuid.UUID
		status string
	)

	err := row.Scan(&id, &doc.Filename, &doc.ContentType, &doc.ByteSize, &status, &doc.Error, &doc.UploadedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	doc.ID = id.String()
	doc.Status = entity.DocumentStatus(status)

	return &doc, nil
}
