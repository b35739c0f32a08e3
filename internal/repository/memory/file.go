package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/repository"
)

var _ repository.FileStorage = &FileStorage{}

type FileStorage struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewFileStorage() *FileStorage {
	return &FileStorage{files: make(map[string][]byte)}
}

func (s *FileStorage) Save(_ context.Context, filename string, data []byte) error {
	s.mu.Lock()
	s.files[filename] = slices.Clone(data)
	s.mu.Unlock()
	return nil
}

func (s *FileStorage) Read(_ context.Context, filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[filename]
	if !ok {
		return nil, entity.ErrDocumentNotFound
	}
	return slices.Clone(data), nil
}

func (s *FileStorage) Delete(_ context.Context, filename string) error {
	s.mu.Lock()
	delete(s.files, filename)
	s.mu.Unlock()
	return nil
}
