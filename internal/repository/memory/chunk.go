package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/repository"
)

var (
	_ repository.ChunkRepository     = &ChunkStore{}
	_ repository.EmbeddingRepository = &EmbeddingStore{}
)

type ChunkStore struct {
	mu         sync.RWMutex
	byID       map[string]entity.Chunk
	byDocument map[string][]string
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		byID:       make(map[string]entity.Chunk),
		byDocument: make(map[string][]string),
	}
}

func (s *ChunkStore) ReplaceForDocument(_ context.Context, documentID string, chunks []entity.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(documentID)

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		s.byID[ch.ID] = ch
		ids[i] = ch.ID
	}
	if len(ids) > 0 {
		s.byDocument[documentID] = ids
	}

	return nil
}

func (s *ChunkStore) GetByIDs(_ context.Context, ids []string) ([]*entity.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]*entity.Chunk, 0, len(ids))
	for _, id := range ids {
		if ch, ok := s.byID[id]; ok {
			chunks = append(chunks, &ch)
		}
	}

	return chunks, nil
}

func (s *ChunkStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	s.deleteLocked(documentID)
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *ChunkStore) deleteLocked(documentID string) {
	for _, id := range s.byDocument[documentID] {
		delete(s.byID, id)
	}
	delete(s.byDocument, documentID)
}

type EmbeddingStore struct {
	mu         sync.RWMutex
	byDocument map[string][]entity.Embedding
	order      []string
}

func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{
		byDocument: make(map[string][]entity.Embedding),
	}
}

func (s *EmbeddingStore) SaveForDocument(_ context.Context, documentID string, embeddings []entity.Embedding) error {
	stored := make([]entity.Embedding, len(embeddings))
	for i, e := range embeddings {
		e.Vector = slices.Clone(e.Vector)
		stored[i] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDocument[documentID]; !ok {
		s.order = append(s.order, documentID)
	}
	s.byDocument[documentID] = stored

	return nil
}

func (s *EmbeddingStore) ListAll(_ context.Context) ([]entity.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Embedding, 0)
	for _, docID := range s.order {
		for _, e := range s.byDocument[docID] {
			e.Vector = slices.Clone(e.Vector)
			out = append(out, e)
		}
	}

	return out, nil
}

func (s *EmbeddingStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDocument[documentID]; !ok {
		return nil
	}
	delete(s.byDocument, documentID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == documentID })

	return nil
}
