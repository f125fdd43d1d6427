package sheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV reads raw CSV text into rows without any date or number
// coercion. Quoted fields may contain separators, doubled quotes and
// newlines. A UTF-8 BOM is dropped; input that is not valid UTF-8 is
// decoded as Windows-1252.
func ParseCSV(data []byte) ([][]string, error) {
	var r io.Reader
	if utf8.Valid(data) {
		r = transform.NewReader(bytes.NewReader(data), unicode.UTF8BOM.NewDecoder())
	} else {
		r = transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder())
	}

	text, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadableFile, "csv: decode: %v", err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1 // ragged rows are padded later
	reader.LazyQuotes = true

	// encoding/csv skips empty lines; they are re-inserted as blank rows
	// because blank runs separate tables.
	var rows [][]string
	nextLine := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrUnreadableFile, "csv: read row %d: %v", len(rows)+1, err)
		}

		line, _ := reader.FieldPos(0)
		for ; nextLine < line; nextLine++ {
			rows = append(rows, []string{})
		}
		rows = append(rows, record)

		// Quoted fields may span lines; the record ends on the last line
		// of its last field.
		last := len(record) - 1
		lastLine, _ := reader.FieldPos(last)
		nextLine = lastLine + strings.Count(record[last], "\n") + 1
	}

	return rows, nil
}

// detectDelimiter inspects the first non-empty line. Comma is the default;
// semicolon or tab is chosen only when the line holds no commas.
func detectDelimiter(text []byte) rune {
	for _, line := range strings.Split(string(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, ",") {
			return ','
		}
		if strings.Contains(line, ";") {
			return ';'
		}
		if strings.Contains(line, "\t") {
			return '\t'
		}
		return ','
	}
	return ','
}
