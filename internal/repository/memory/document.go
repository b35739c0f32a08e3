// Package memory holds process-local implementations of the repository interfaces.
// They back the default storage mode and the package tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/repository"
)

var _ repository.DocumentRepository = &DocumentStore{}

type DocumentStore struct {
	mu         sync.RWMutex
	byID       map[string]*entity.Document
	byFilename map[string]string
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		byID:       make(map[string]*entity.Document),
		byFilename: make(map[string]string),
	}
}

func (s *DocumentStore) Create(_ context.Context, doc entity.Document) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byFilename[doc.Filename]; ok {
		return nil, fmt.Errorf("create document %s: %w", doc.Filename, entity.ErrDuplicateName)
	}

	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UpdatedAt = doc.UploadedAt

	stored := copyDocument(&doc)
	s.byID[doc.ID] = stored
	s.byFilename[doc.Filename] = doc.ID

	return copyDocument(stored), nil
}

func (s *DocumentStore) GetByID(_ context.Context, id string) (*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return nil, entity.ErrDocumentNotFound
	}

	return copyDocument(doc), nil
}

func (s *DocumentStore) GetByFilename(_ context.Context, filename string) (*entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFilename[filename]
	if !ok {
		return nil, entity.ErrDocumentNotFound
	}

	return copyDocument(s.byID[id]), nil
}

func (s *DocumentStore) List(_ context.Context) ([]*entity.Document, error) {
	s.mu.RLock()
	docs := make([]*entity.Document, 0, len(s.byID))
	for _, doc := range s.byID {
		docs = append(docs, copyDocument(doc))
	}
	s.mu.RUnlock()

	slices.SortFunc(docs, func(a, b *entity.Document) int {
		if c := a.UploadedAt.Compare(b.UploadedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Filename, b.Filename)
	})

	return docs, nil
}

func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status entity.DocumentStatus, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return entity.ErrDocumentNotFound
	}

	doc.Status = status
	doc.Error = copyString(reason)
	doc.UpdatedAt = time.Now()

	return nil
}

func (s *DocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return entity.ErrDocumentNotFound
	}

	delete(s.byID, id)
	delete(s.byFilename, doc.Filename)

	return nil
}

func copyDocument(doc *entity.Document) *entity.Document {
	out := *doc
	out.Error = copyString(doc.Error)
	return &out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
