// Package extractor turns raw document bytes into plain text.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/futig/docchat-backend/internal/entity"
)

// Decoder extracts text from one document format.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (string, error)
}

// Registry picks a Decoder by filename extension.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry returns a registry with decoders for .txt, .md, .pdf and .docx.
func NewRegistry() *Registry {
	r := &Registry{decoders: map[string]Decoder{}}
	r.Register(".txt", NewPlainTextDecoder())
	r.Register(".md", NewMarkdownDecoder())
	r.Register(".pdf", NewPDFDecoder())
	r.Register(".docx", NewDOCXDecoder())
	return r
}

// Register binds a decoder to an extension such as ".txt".
func (r *Registry) Register(ext string, d Decoder) {
	r.decoders[strings.ToLower(ext)] = d
}

// Supports reports whether filename has a registered decoder.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.decoders[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract decodes data according to the extension of filename.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	d, ok := r.decoders[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, ext)
	}

	text, err := d.Decode(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", entity.ErrDecodeFailed, filename, err)
	}

	return normalizeText(text), nil
}

// normalizeText unifies line endings and trims trailing spaces on every line.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
