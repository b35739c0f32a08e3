// Package chunker splits document text into overlapping fixed-size passages.
package chunker

import (
	"strings"
	"unicode"

	"github.com/futig/docchat-backend/internal/entity"
)

const (
	// DefaultChunkSize is the default window size in characters.
	DefaultChunkSize = 800

	// DefaultOverlap is the default number of characters shared by neighbouring chunks.
	DefaultOverlap = 100
)

// separators are tried in order when looking for a natural window end.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker is a pure, deterministic text splitter. Safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive windows.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker. An overlap that is not smaller than the size is clamped to size/4.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into chunks owned by documentID. Offsets are in runes and half-open.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(documentID, text string) []entity.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []entity.Chunk
	start := 0
	for start < n {
		end := min(start+c.size, n)
		if end < n {
			end = c.boundary(runes, start, end)
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			seq := len(chunks)
			chunks = append(chunks, entity.Chunk{
				ID:         entity.ChunkID(documentID, seq),
				DocumentID: documentID,
				Sequence:   seq,
				Text:       piece,
				CharStart:  start,
				CharEnd:    end,
			})
		}

		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		// Do not start a window in the middle of a word when a space is close by.
		next = c.alignStart(runes, next, end)
		start = next
	}

	return chunks
}

// boundary moves end back to the last separator in the second half of the window.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	floor := start + c.size/2
	window := string(runes[floor:end])

	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		// idx is a byte offset inside window; convert it back to runes.
		cut := floor + len([]rune(window[:idx+len(sep)]))
		if cut > start && cut <= end {
			return cut
		}
	}

	return end
}

// alignStart advances pos past a partial word, never beyond limit.
func (c *Chunker) alignStart(runes []rune, pos, limit int) int {
	if pos <= 0 || pos >= limit {
		return pos
	}
	if unicode.IsSpace(runes[pos-1]) {
		return pos
	}
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return pos
}
