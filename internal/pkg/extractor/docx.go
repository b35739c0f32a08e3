package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/document"
)

// DOCXDecoder extracts paragraph and table text from Word documents.
type DOCXDecoder struct{}

func NewDOCXDecoder() *DOCXDecoder {
	return &DOCXDecoder{}
}

func (d *DOCXDecoder) Decode(_ context.Context, data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		writeParagraph(&sb, p)
	}

	for _, table := range doc.Tables() {
		for _, row := range table.Rows() {
			cells := make([]string, 0, len(row.Cells()))
			for _, cell := range row.Cells() {
				var cellText strings.Builder
				for _, p := range cell.Paragraphs() {
					for _, run := range p.Runs() {
						cellText.WriteString(run.Text())
					}
				}
				cells = append(cells, strings.TrimSpace(cellText.String()))
			}
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

func writeParagraph(sb *strings.Builder, p document.Paragraph) {
	for _, run := range p.Runs() {
		sb.WriteString(run.Text())
	}
	sb.WriteString("\n")
}
