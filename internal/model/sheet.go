package model

import "fmt"

// FileKind identifies the container format of an uploaded file.
type FileKind string

const (
	KindUnknown FileKind = ""
	KindXLSX    FileKind = "xlsx"
	KindCSV     FileKind = "csv"
	KindPDF     FileKind = "pdf"
	KindImage   FileKind = "image"
)

// Tabular reports whether the kind goes through segmentation and mapping.
func (k FileKind) Tabular() bool {
	return k == KindXLSX || k == KindCSV
}

// Visual reports whether the kind goes through direct vision extraction.
func (k FileKind) Visual() bool {
	return k == KindPDF || k == KindImage
}

// SheetData is one physical spreadsheet tab as a rectangular grid of
// display-formatted text cells. Interior blank rows and columns are kept.
type SheetData struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Width returns the number of columns in the widest row.
func (s SheetData) Width() int {
	w := 0
	for _, r := range s.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Workbook is the parsed form of a tabular file.
type Workbook struct {
	Kind   FileKind    `json:"kind"`
	Sheets []SheetData `json:"sheets"`
}

// Document is a PDF or image submitted for direct extraction.
type Document struct {
	Filename  string
	Kind      FileKind
	MediaType string
	Data      []byte
	// TextHint holds the PDF text layer, when one could be read.
	TextHint string
	Pages    int
}

// Source attributes a draft to the place it came from.
type Source struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
}

func (s Source) String() string {
	if s.Row <= 0 {
		return s.Sheet
	}
	return fmt.Sprintf("%s row %d", s.Sheet, s.Row)
}
