package extractor

import (
	"context"
	"regexp"
	"strings"
)

var (
	mdCodeFence    = regexp.MustCompile("(?m)^```[^\n]*$")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s?`)
	mdRule         = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	mdListMarker   = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	mdEmphasis     = regexp.MustCompile(`(^|[^\w])(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	mdHTMLTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	mdManyNewlines = regexp.MustCompile(`\n{3,}`)
)

// MarkdownDecoder strips markup and keeps the readable text, code included.
type MarkdownDecoder struct {
	plain *PlainTextDecoder
}

func NewMarkdownDecoder() *MarkdownDecoder {
	return &MarkdownDecoder{plain: NewPlainTextDecoder()}
}

func (d *MarkdownDecoder) Decode(ctx context.Context, data []byte) (string, error) {
	text, err := d.plain.Decode(ctx, data)
	if err != nil {
		return "", err
	}
	return stripMarkdown(text), nil
}

func stripMarkdown(content string) string {
	content = mdCodeFence.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdListMarker.ReplaceAllString(content, "$1")
	content = mdEmphasis.ReplaceAllString(content, "$1$3")
	content = mdHTMLTag.ReplaceAllString(content, "")
	content = mdManyNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
