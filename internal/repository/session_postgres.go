package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository defines the interface for chat session persistence
type SessionRepository interface {
	// Create stores a new empty session. While the store is at capacity the least
	// recently updated sessions are evicted; their ids are returned.
	Create(ctx context.Context, title string) (*entity.Session, []string, error)
	Get(ctx context.Context, id string) (*entity.Session, error)
	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]*entity.SessionSummary, error)
	// FindEmpty returns the newest session without messages or entity.ErrSessionNotFound.
	FindEmpty(ctx context.Context) (*entity.Session, error)
	// AppendMessages appends all messages or none. A non-nil title replaces the current one.
	AppendMessages(ctx context.Context, id string, title *string, messages ...entity.Message) (*entity.Session, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

var _ SessionRepository = &SessionPostgres{}

// sessionCapLockKey serializes capacity checks across replicas.
const sessionCapLockKey = 0x5e55_10c5

// SessionPostgres implements SessionRepository using PostgreSQL
type SessionPostgres struct {
	db          *pgxpool.Pool
	maxSessions int
}

func NewSessionPostgres(db *pgxpool.Pool, maxSessions int) *SessionPostgres {
	return &SessionPostgres{
		db:          db,
		maxSessions: maxSessions,
	}
}

func (r *SessionPostgres) Create(ctx context.Context, title string) (*entity.Session, []string, error) {
	session := &entity.Session{
		ID:       uuid.NewString(),
		Title:    title,
		Messages: []entity.Message{},
	}
	var evicted []string

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, sessionCapLockKey); err != nil {
			return fmt.Errorf("lock sessions: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}

		if over := count - r.maxSessions + 1; r.maxSessions > 0 && over > 0 {
			rows, err := tx.Query(ctx, `
				DELETE FROM sessions WHERE id IN (
					SELECT id FROM sessions ORDER BY last_updated, created_at LIMIT $1
				) RETURNING id`, over)
			if err != nil {
				return fmt.Errorf("evict sessions: %w", err)
			}
			ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
			if err != nil {
				return fmt.Errorf("collect evicted sessions: %w", err)
			}
			for _, id := range ids {
				evicted = append(evicted, id.String())
			}
		}

		return tx.QueryRow(ctx, `
			INSERT INTO sessions (id, title) VALUES ($1, $2)
			RETURNING created_at, last_updated`,
			uuid.MustParse(session.ID), title,
		).Scan(&session.CreatedAt, &session.LastUpdated)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	return session, evicted, nil
}

func (r *SessionPostgres) Get(ctx context.Context, id string) (*entity.Session, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, entity.ErrSessionNotFound
	}

	var session *entity.Session
	err = pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		session, err = loadSession(ctx, tx, sessionID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionPostgres) List(ctx context.Context) ([]*entity.SessionSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.title, s.created_at, s.last_updated, COUNT(m.id)
		FROM sessions s
		LEFT JOIN session_messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.last_updated DESC, s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]*entity.SessionSummary, 0)
	for rows.Next() {
		var (
			s  entity.SessionSummary
			id uuid.UUID
		)
		if err := rows.Scan(&id, &s.Title, &s.CreatedAt, &s.LastUpdated, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.ID = id.String()
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

func (r *SessionPostgres) FindEmpty(ctx context.Context) (*entity.Session, error) {
	var (
		session entity.Session
		id      uuid.UUID
	)

	err := r.db.QueryRow(ctx, `
		SELECT s.id, s.title, s.created_at, s.last_updated
		FROM sessions s
		WHERE NOT EXISTS (SELECT 1 FROM session_messages m WHERE m.session_id = s.id)
		ORDER BY s.created_at DESC
		LIMIT 1`).Scan(&id, &session.Title, &session.CreatedAt, &session.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find empty session: %w", err)
	}

	session.ID = id.String()
	session.Messages = []entity.Message{}

	return &session, nil
}

func (r *SessionPostgres) AppendMessages(ctx context.Context, id string, title *string, messages ...entity.Message) (
	*entity.Session, error,
) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, entity.ErrSessionNotFound
	}

	var session *entity.Session
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// Row lock serializes appends to the same session.
		if _, err := loadSession(ctx, tx, sessionID, true); err != nil {
			return err
		}

		lastUpdated := time.Now()
		for _, msg := range messages {
			sources, err := json.Marshal(nonNilSources(msg.Sources))
			if err != nil {
				return fmt.Errorf("marshal sources: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO session_messages (session_id, role, content, sources, created_at)
				VALUES ($1, $2, $3, $4, $5)`,
				sessionID, string(msg.Role), msg.Content, sources, msg.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
			if msg.CreatedAt.After(lastUpdated) {
				lastUpdated = msg.CreatedAt
			}
		}

		_, err := tx.Exec(ctx, `
			UPDATE sessions
			SET last_updated = GREATEST(last_updated, $2), title = COALESCE($3, title)
			WHERE id = $1`,
			sessionID, lastUpdated, title,
		)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}

		session, err = loadSession(ctx, tx, sessionID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionPostgres) Delete(ctx context.Context, id string) error {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return entity.ErrSessionNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrSessionNotFound
	}

	return nil
}

func (r *SessionPostgres) Clear(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func loadSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, forUpdate bool) (*entity.Session, error) {
	query := `SELECT title, created_at, last_updated FROM sessions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	session := &entity.Session{ID: id.String()}
	err := tx.QueryRow(ctx, query, id).Scan(&session.Title, &session.CreatedAt, &session.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if forUpdate {
		return session, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT role, content, sources, created_at
		FROM session_messages WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get session messages: %w", err)
	}
	defer rows.Close()

	session.Messages = make([]entity.Message, 0)
	for rows.Next() {
		var (
			msg     entity.Message
			role    string
			sources []byte
		)
		if err := rows.Scan(&role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = entity.MessageRole(role)
		if err := json.Unmarshal(sources, &msg.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		if len(msg.Sources) == 0 {
			msg.Sources = nil
		}
		session.Messages = append(session.Messages, msg)
	}

	return session, rows.Err()
}

func nonNilSources(sources []entity.Source) []entity.Source {
	if sources == nil {
		return []entity.Source{}
	}
	return sources
}
