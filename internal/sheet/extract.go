package sheet

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
)

var (
	// ErrUnreadableFile marks a file whose container could not be parsed.
	ErrUnreadableFile = eris.New("sheet: unreadable file")
	// ErrUnsupportedFormat marks a file kind the importer does not handle.
	ErrUnsupportedFormat = eris.New("sheet: unsupported format")
)

// Extract parses file bytes into a workbook. Tabular kinds yield one
// SheetData per tab; PDF and image kinds yield a workbook with no sheets.
func Extract(data []byte, filename string) (*model.Workbook, error) {
	if len(data) == 0 {
		return nil, eris.Wrapf(ErrUnreadableFile, "%s is empty", filename)
	}

	kind := DetectKind(data, filename)
	wb := &model.Workbook{Kind: kind}

	switch kind {
	case model.KindXLSX:
		sheets, err := readWorkbook(data)
		if err != nil {
			return nil, err
		}
		wb.Sheets = sheets
	case model.KindCSV:
		rows, err := ParseCSV(data)
		if err != nil {
			return nil, err
		}
		wb.Sheets = []model.SheetData{{Name: csvSheetName(filename), Rows: rows}}
	case model.KindPDF, model.KindImage:
		return wb, nil
	default:
		if strings.EqualFold(filepath.Ext(filename), ".xls") {
			return nil, eris.Wrap(ErrUnsupportedFormat, "legacy .xls workbooks are not supported, save the file as .xlsx")
		}
		return nil, eris.Wrapf(ErrUnsupportedFormat, "cannot determine the type of %s", filename)
	}

	for i := range wb.Sheets {
		wb.Sheets[i].Rows = normalizeGrid(wb.Sheets[i].Rows)
	}

	zap.L().Debug("sheet: extracted",
		zap.String("file", filename),
		zap.String("kind", string(kind)),
		zap.Int("sheets", len(wb.Sheets)),
	)
	return wb, nil
}

// normalizeGrid trims trailing fully-empty rows and pads ragged rows to a
// common width. Interior blank rows and columns are preserved.
func normalizeGrid(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && rowEmpty(rows[end-1]) {
		end--
	}
	rows = rows[:end]

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func csvSheetName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "Sheet1"
	}
	return name
}
