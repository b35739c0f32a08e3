package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/repository"
	"github.com/google/uuid"
)

var _ repository.SessionRepository = &SessionStore{}

type sessionEntry struct {
	mu      sync.Mutex
	session entity.Session
	deleted bool
	// touched orders entries for eviction; larger is more recent.
	touched atomic.Uint64
}

// SessionStore keeps sessions in memory. Appends to one session are serialized by the
// entry mutex, operations on different sessions run in parallel.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	maxSessions int
	clock       atomic.Uint64
	now         func() time.Time
}

func NewSessionStore(maxSessions int) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, title string) (*entity.Session, []string, error) {
	now := s.now()
	entry := &sessionEntry{
		session: entity.Session{
			ID:          uuid.NewString(),
			Title:       title,
			CreatedAt:   now,
			LastUpdated: now,
			Messages:    []entity.Message{},
		},
	}
	entry.touched.Store(s.clock.Add(1))

	s.mu.Lock()
	var evicted []string
	for s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		id := s.oldestLocked()
		old := s.sessions[id]
		delete(s.sessions, id)
		old.mu.Lock()
		old.deleted = true
		old.mu.Unlock()
		evicted = append(evicted, id)
	}
	s.sessions[entry.session.ID] = entry
	s.mu.Unlock()

	return copySession(&entry.session), evicted, nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*entity.Session, error) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, entity.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, entity.ErrSessionNotFound
	}

	return copySession(&entry.session), nil
}

func (s *SessionStore) List(_ context.Context) ([]*entity.SessionSummary, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	type ranked struct {
		summary *entity.SessionSummary
		touched uint64
	}
	items := make([]ranked, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			items = append(items, ranked{
				summary: &entity.SessionSummary{
					ID:           e.session.ID,
					Title:        e.session.Title,
					CreatedAt:    e.session.CreatedAt,
					LastUpdated:  e.session.LastUpdated,
					MessageCount: len(e.session.Messages),
				},
				touched: e.touched.Load(),
			})
		}
		e.mu.Unlock()
	}

	slices.SortFunc(items, func(a, b ranked) int {
		if c := b.summary.LastUpdated.Compare(a.summary.LastUpdated); c != 0 {
			return c
		}
		switch {
		case a.touched > b.touched:
			return -1
		case a.touched < b.touched:
			return 1
		default:
			return 0
		}
	})

	out := make([]*entity.SessionSummary, len(items))
	for i, it := range items {
		out[i] = it.summary
	}

	return out, nil
}

func (s *SessionStore) FindEmpty(_ context.Context) (*entity.Session, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var (
		found  *entity.Session
		newest uint64
	)
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && len(e.session.Messages) == 0 {
			if t := e.touched.Load(); found == nil || t > newest {
				found = copySession(&e.session)
				newest = t
			}
		}
		e.mu.Unlock()
	}

	if found == nil {
		return nil, entity.ErrSessionNotFound
	}

	return found, nil
}

func (s *SessionStore) AppendMessages(_ context.Context, id string, title *string, messages ...entity.Message) (
	*entity.Session, error,
) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, entity.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Deleted or evicted after the lookup above.
	if entry.deleted {
		return nil, entity.ErrSessionNotFound
	}

	lastUpdated := s.now()
	for _, msg := range messages {
		msg.Sources = slices.Clone(msg.Sources)
		entry.session.Messages = append(entry.session.Messages, msg)
		if msg.CreatedAt.After(lastUpdated) {
			lastUpdated = msg.CreatedAt
		}
	}
	if title != nil {
		entry.session.Title = *title
	}
	if lastUpdated.After(entry.session.LastUpdated) {
		entry.session.LastUpdated = lastUpdated
	}
	entry.touched.Store(s.clock.Add(1))

	return copySession(&entry.session), nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return entity.ErrSessionNotFound
	}

	entry.mu.Lock()
	entry.deleted = true
	entry.mu.Unlock()

	return nil
}

func (s *SessionStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	old := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range old {
		entry.mu.Lock()
		entry.deleted = true
		entry.mu.Unlock()
	}

	return len(old), nil
}

func (s *SessionStore) entry(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

// oldestLocked returns the least recently touched session id. Callers hold s.mu.
func (s *SessionStore) oldestLocked() string {
	var (
		oldestID string
		oldest   uint64
	)
	for id, e := range s.sessions {
		if t := e.touched.Load(); oldestID == "" || t < oldest {
			oldestID = id
			oldest = t
		}
	}
	return oldestID
}

func copySession(s *entity.Session) *entity.Session {
	out := *s
	out.Messages = make([]entity.Message, len(s.Messages))
	for i, m := range s.Messages {
		m.Sources = slices.Clone(m.Sources)
		out.Messages[i] = m
	}
	return &out
}
