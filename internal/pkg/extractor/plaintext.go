package extractor

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// PlainTextDecoder reads UTF-8 text, or UTF-16 when the file starts with a byte order mark.
type PlainTextDecoder struct{}

func NewPlainTextDecoder() *PlainTextDecoder {
	return &PlainTextDecoder{}
}

func (d *PlainTextDecoder) Decode(_ context.Context, data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())

	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", err
	}

	text := string(out)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
