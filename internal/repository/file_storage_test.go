package repository

import (
	"context"
	"os"
	"testing"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "notes.txt", []byte("The sky is blue.")))
	require.NoError(t, s.Save(ctx, "notes.txt", []byte("The sky is grey.")))

	data, err := s.Read(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "The sky is grey.", string(data))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, s.Delete(ctx, "notes.txt"))
	require.NoError(t, s.Delete(ctx, "notes.txt"))

	_, err = s.Read(ctx, "notes.txt")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)
}

func TestLocalFileStorage_RejectsPaths(t *testing.T) {
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.txt", "dir/file.txt", ".."} {
		err := s.Save(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, entity.ErrInvalidFile, name)
	}
}
