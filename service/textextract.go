package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// TextExtractor turns the raw bytes of a PDF into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// PDFTextExtractor reads text locally. Rows are rebuilt from glyph positions
// so table lines keep their cells on one line.
type PDFTextExtractor struct{}

func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

func (e *PDFTextExtractor) ExtractText(ctx context.Context, _ string, data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", NewExtractionFailure("file is not a readable PDF", fmt.Errorf("missing %%PDF header"))
	}
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", NewExtractionFailure("PDF could not be parsed", fmt.Errorf("pdf panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", NewExtractionFailure("PDF could not be opened (corrupted or encrypted)", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", NewExtractionFailure("PDF text could not be read", err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, t := range row.Content {
				words = append(words, t.S)
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if strings.TrimSpace(b.String()) != "" {
		return b.String(), nil
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", NewExtractionFailure("PDF text could not be read", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", NewExtractionFailure("PDF text could not be read", err)
	}
	return string(raw), nil
}
