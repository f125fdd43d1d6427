package ocr

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// TextLayer reads embedded PDF text in-process. Scanned PDFs without a text
// layer yield an empty string.
type TextLayer struct{}

// NewTextLayer creates a TextLayer extractor.
func NewTextLayer() *TextLayer {
	return &TextLayer{}
}

// ExtractText returns the plain text of every page.
func (t *TextLayer) ExtractText(ctx context.Context, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "ocr: open pdf")
	}
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "ocr: text layer")
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", eris.Wrap(err, "ocr: read text layer")
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read text layer")
	}
	return strings.TrimSpace(string(text)), nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, eris.Wrap(err, "ocr: open pdf")
	}
	return r.NumPage(), nil
}
