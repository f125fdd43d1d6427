// Package ocr reads the text layer of PDF documents so it can accompany the
// document when it is sent for visual extraction.
package ocr

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/joselpq/arqcashflow/internal/config"
)

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "textlayer", "":
		return NewTextLayer(), nil
	case "local", "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "none":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Nop never returns text.
type Nop struct{}

// ExtractText implements Extractor.
func (Nop) ExtractText(context.Context, []byte) (string, error) {
	return "", nil
}

// Truncate cuts text to at most maxChars bytes without splitting a rune.
// A non-positive maxChars disables the limit.
func Truncate(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
