package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, DefaultOverlap, c.Overlap())
}

func TestNew_ClampsOverlap(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 25, c.Overlap())
}

func TestSplit_EmptyText(t *testing.T) {
	c := New()

	for _, text := range []string{"", "   ", "\n\t\n"} {
		assert.Empty(t, c.Split("doc", text))
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks := New().Split("doc", "The sky is blue.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc:0", chunks[0].ID)
	assert.Equal(t, "doc", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Sequence)
	assert.Equal(t, "The sky is blue.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, 16, chunks[0].CharEnd)
}

func TestSplit_PrefersWordBoundaries(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(0))

	chunks := c.Split("doc", "aaaa bbbb cccc")

	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa bbbb ", chunks[0].Text)
	assert.Equal(t, "cccc", chunks[1].Text)
	assert.Equal(t, 10, chunks[1].CharStart)
}

func TestSplit_CoversTextWithOverlap(t *testing.T) {
	text := strings.Repeat("Retrieval augmented generation grounds answers in documents. ", 60) +
		"Ünïcödé tail with multibyte runes: 日本語のテキスト."
	runes := []rune(text)

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "default", size: DefaultChunkSize, overlap: DefaultOverlap},
		{name: "small windows", size: 50, overlap: 10},
		{name: "no overlap", size: 120, overlap: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := New(WithChunkSize(tt.size), WithOverlap(tt.overlap)).Split("doc", text)
			require.NotEmpty(t, chunks)

			assert.Equal(t, 0, chunks[0].CharStart)
			assert.Equal(t, len(runes), chunks[len(chunks)-1].CharEnd)

			for i, ch := range chunks {
				assert.Equal(t, i, ch.Sequence)
				assert.Equal(t, string(runes[ch.CharStart:ch.CharEnd]), ch.Text)
				assert.LessOrEqual(t, ch.CharEnd-ch.CharStart, tt.size)

				if i > 0 {
					prev := chunks[i-1]
					assert.Greater(t, ch.CharStart, prev.CharStart, "windows must advance")
					assert.LessOrEqual(t, ch.CharStart, prev.CharEnd, "windows must not leave gaps")
				}
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta\n", 200)
	c := New(WithChunkSize(64), WithOverlap(16))

	assert.Equal(t, c.Split("doc", text), c.Split("doc", text))
}
