package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/futig/docchat-backend/internal/entity"
)

// FileStorage keeps the raw bytes of uploaded documents.
type FileStorage interface {
	Save(ctx context.Context, filename string, data []byte) error
	Read(ctx context.Context, filename string) ([]byte, error)
	// Delete is a no-op for a missing file.
	Delete(ctx context.Context, filename string) error
}

var _ FileStorage = &LocalFileStorage{}

// LocalFileStorage stores files flat in one directory.
type LocalFileStorage struct {
	dir string
}

func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

// Save writes to a temp file and renames it into place, so readers never see a partial file.
func (s *LocalFileStorage) Save(_ context.Context, filename string, data []byte) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return storageError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageError("write file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageError("sync file", err)
	}
	if err := tmp.Close(); err != nil {
		return storageError("close file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return storageError("rename file", err)
	}

	return nil
}

func (s *LocalFileStorage) Read(_ context.Context, filename string) ([]byte, error) {
	path, err := s.path(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, entity.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (s *LocalFileStorage) Delete(_ context.Context, filename string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}

	return nil
}

func (s *LocalFileStorage) path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: unsafe filename %q", entity.ErrInvalidFile, filename)
	}
	return filepath.Join(s.dir, filename), nil
}

func storageError(op string, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%s: %w", op, entity.ErrStorageFull)
	}
	return fmt.Errorf("%s: %w", op, err)
}
