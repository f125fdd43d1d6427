package sheet

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
)

// readWorkbook loads every sheet of an xlsx workbook. Cells keep their
// display string except numeric cells carrying a date format, which are
// rendered as YYYY-MM-DD from the underlying serial.
func readWorkbook(data []byte) ([]model.SheetData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadableFile, "xlsx: open workbook: %v", err)
	}
	defer f.Close() //nolint:errcheck

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	dates := &dateStyles{f: f, known: make(map[int]bool)}

	var sheets []model.SheetData
	for _, name := range f.GetSheetList() {
		display, err := f.GetRows(name)
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableFile, "xlsx: read sheet %q: %v", name, err)
		}
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableFile, "xlsx: read raw sheet %q: %v", name, err)
		}

		for r, row := range display {
			for c, cell := range row {
				if r >= len(raw) || c >= len(raw[r]) {
					continue
				}
				rawCell := raw[r][c]
				if rawCell == cell {
					continue
				}
				serial, err := strconv.ParseFloat(rawCell, 64)
				if err != nil || serial < 1 {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil || !dates.isDate(name, axis) {
					continue
				}
				t, err := excelize.ExcelDateToTime(serial, date1904)
				if err != nil {
					continue
				}
				row[c] = t.Format(model.DateLayout)
			}
		}

		sheets = append(sheets, model.SheetData{Name: name, Rows: display})
	}

	zap.L().Debug("sheet: workbook loaded", zap.Int("sheets", len(sheets)))
	return sheets, nil
}

// dateStyles caches whether a cell style index carries a date number format.
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d *dateStyles) isDate(sheet, axis string) bool {
	idx, err := d.f.GetCellStyle(sheet, axis)
	if err != nil {
		return false
	}
	if v, ok := d.known[idx]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(idx); err == nil && style != nil {
		v = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	d.known[idx] = v
	return v
}

// isDateFormat recognises built-in date formats (14-17, 22) and custom
// formats containing day or year tokens. Time-only formats are excluded.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return customHasDateTokens(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 17, numFmt == 22:
		return true
	}
	return false
}

func customHasDateTokens(format string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "yd")
}
