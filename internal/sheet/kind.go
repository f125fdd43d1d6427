// Package sheet parses uploaded files into per-sheet grids of text cells.
package sheet

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joselpq/arqcashflow/internal/model"
)

var extKinds = map[string]model.FileKind{
	".xlsx": model.KindXLSX,
	".xlsm": model.KindXLSX,
	".csv":  model.KindCSV,
	".txt":  model.KindCSV,
	".tsv":  model.KindCSV,
	".pdf":  model.KindPDF,
	".png":  model.KindImage,
	".jpg":  model.KindImage,
	".jpeg": model.KindImage,
	".gif":  model.KindImage,
	".webp": model.KindImage,
}

var (
	magicZip  = []byte("PK\x03\x04")
	magicPDF  = []byte("%PDF")
	magicOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicPNG  = []byte("\x89PNG\r\n\x1a\n")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicGIF  = []byte("GIF8")
)

// DetectKind determines the container format from the file extension,
// falling back to magic bytes when the extension is missing or unknown.
func DetectKind(data []byte, filename string) model.FileKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if k, ok := extKinds[ext]; ok {
		return k
	}
	if ext == ".xls" {
		return model.KindUnknown
	}
	return sniff(data)
}

func sniff(data []byte) model.FileKind {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return model.KindXLSX
	case bytes.HasPrefix(data, magicPDF):
		return model.KindPDF
	case bytes.HasPrefix(data, magicPNG),
		bytes.HasPrefix(data, magicJPEG),
		bytes.HasPrefix(data, magicGIF),
		isWebP(data):
		return model.KindImage
	case bytes.HasPrefix(data, magicOLE2):
		return model.KindUnknown
	}
	if looksLikeText(data) {
		return model.KindCSV
	}
	return model.KindUnknown
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// looksLikeText accepts UTF-8 or single-byte text without NUL bytes.
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	if len(head) == 0 || bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if utf8.Valid(head) {
		return true
	}
	// Windows-1252 exports: mostly printable ASCII with sparse high bytes.
	high := 0
	for _, b := range head {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			return false
		}
		if b >= 0x80 {
			high++
		}
	}
	return high*10 < len(head)
}

// MediaType returns the MIME type for a visual document.
func MediaType(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
