package formatter

import (
	"bytes"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	pdfFontName = "DejaVuSans"

	// Looked up next to the binary first, then in the source tree.
	pdfFontRuntimePath = "ttf/DejaVuSans.ttf"
	pdfFontSourcePath  = "internal/pkg/formatter/ttf/DejaVuSans.ttf"
)

type PDFFormatter struct{}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

// resolveFontPath returns the first existing UTF-8 font path, or "" to fall back to a core font.
func resolveFontPath() string {
	for _, path := range []string{pdfFontRuntimePath, pdfFontSourcePath} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (mf *PDFFormatter) Format(title, body string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	fontName := "Arial"
	if fontPath := resolveFontPath(); fontPath != "" {
		pdf.AddUTF8Font(pdfFontName, "", fontPath)
		pdf.AddUTF8Font(pdfFontName, "B", fontPath)
		fontName = pdfFontName
	} else {
		// Core fonts only cover Latin-1.
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		title, body = tr(title), tr(body)
	}

	pdf.SetFont(fontName, "B", 18)
	pdf.MultiCell(0, 9, title, "", "", false)
	pdf.Ln(4)

	for _, line := range strings.Split(body, "\n") {
		if heading, ok := strings.CutPrefix(line, "## "); ok {
			pdf.SetFont(fontName, "B", 13)
			pdf.MultiCell(0, 7, heading, "", "", false)
			continue
		}
		pdf.SetFont(fontName, "", 11)
		_, lineHeight := pdf.GetFontSize()
		pdf.MultiCell(0, lineHeight*1.5, line, "", "", false)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (mf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (mf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
