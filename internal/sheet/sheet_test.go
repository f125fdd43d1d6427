package sheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func buildWorkbook(t *testing.T, fill func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	fill(f)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     model.FileKind
	}{
		{"xlsx extension", nil, "book.XLSX", model.KindXLSX},
		{"csv extension", []byte("a,b"), "data.csv", model.KindCSV},
		{"pdf extension", nil, "invoice.pdf", model.KindPDF},
		{"jpeg extension", nil, "receipt.jpeg", model.KindImage},
		{"legacy xls", []byte{0xD0, 0xCF, 0x11, 0xE0}, "old.xls", model.KindUnknown},
		{"zip magic", []byte("PK\x03\x04rest"), "upload", model.KindXLSX},
		{"pdf magic", []byte("%PDF-1.7"), "upload.bin", model.KindPDF},
		{"png magic", []byte("\x89PNG\r\n\x1a\nxxxx"), "upload", model.KindImage},
		{"webp magic", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "upload", model.KindImage},
		{"ole2 magic", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "upload", model.KindUnknown},
		{"plain text", []byte("name,value\nA,1\n"), "upload", model.KindCSV},
		{"binary", []byte{0x00, 0x01, 0x02}, "upload", model.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.data, tt.filename))
		})
	}
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/pdf", MediaType(nil, "a.pdf"))
	assert.Equal(t, "image/jpeg", MediaType(nil, "a.JPG"))
	assert.Equal(t, "image/png", MediaType([]byte("\x89PNG\r\n\x1a\n\x00\x00"), "upload"))
}

func TestParseCSV_QuotedFields(t *testing.T) {
	data := []byte("name,notes,value\n\"Smith, John\",\"said \"\"hi\"\"\nthen left\",100\n")

	rows, err := ParseCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Smith, John", "said \"hi\"\nthen left", "100"}, rows[1])
}

func TestParseCSV_NoCoercion(t *testing.T) {
	rows, err := ParseCSV([]byte("date,amount\n23/10/2020,\"1.234,56\"\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"23/10/2020", "1.234,56"}, rows[1])
}

func TestParseCSV_EmptyLinesKept(t *testing.T) {
	rows, err := ParseCSV([]byte("a,b\n\"multi\nline\",1\n\n\nc,d\n"))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"multi\nline", "1"}, rows[1])
	assert.Empty(t, rows[2])
	assert.Empty(t, rows[3])
	assert.Equal(t, []string{"c", "d"}, rows[4])
}

func TestParseCSV_EveryBlankRunKept(t *testing.T) {
	rows, err := ParseCSV([]byte("h,x\n1,2\n\n\nh,y\n3,4\n\n\nh,z\n5,6\n\nh,w\n7,\"a\nb\"\n\n\nh,v\n"))
	require.NoError(t, err)
	require.Len(t, rows, 16)
	for _, i := range []int{2, 3, 6, 7, 10, 13, 14} {
		assert.Empty(t, rows[i], "row %d", i)
	}
	assert.Equal(t, []string{"h", "y"}, rows[4])
	assert.Equal(t, []string{"h", "z"}, rows[8])
	assert.Equal(t, []string{"h", "w"}, rows[11])
	assert.Equal(t, []string{"7", "a\nb"}, rows[12])
	assert.Equal(t, []string{"h", "v"}, rows[15])
}

func TestParseCSV_BOM(t *testing.T) {
	rows, err := ParseCSV([]byte("\xEF\xBB\xBFcliente,valor\nA,1\n"))
	require.NoError(t, err)
	assert.Equal(t, "cliente", rows[0][0])
}

func TestParseCSV_Windows1252(t *testing.T) {
	// "Descrição" encoded as Windows-1252.
	rows, err := ParseCSV([]byte("Descri\xe7\xe3o,Valor\nAluguel,2000\n"))
	require.NoError(t, err)
	assert.Equal(t, "Descrição", rows[0][0])
}

func TestParseCSV_Semicolon(t *testing.T) {
	rows, err := ParseCSV([]byte("cliente;valor\nA;1.234,56\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "1.234,56"}, rows[1])
}

func TestExtract_CSVPreservesInteriorBlanks(t *testing.T) {
	data := []byte("a,b\n1,2\n\n,\nc,d\n3\n,\n\n")

	wb, err := Extract(data, "mixed.csv")
	require.NoError(t, err)
	assert.Equal(t, model.KindCSV, wb.Kind)
	require.Len(t, wb.Sheets, 1)

	s := wb.Sheets[0]
	assert.Equal(t, "mixed", s.Name)
	require.Len(t, s.Rows, 6, "trailing blank rows trimmed, interior kept")
	assert.Equal(t, []string{"", ""}, s.Rows[2])
	assert.Equal(t, []string{"3", ""}, s.Rows[5], "ragged row padded")
}

func TestExtract_XLSXDates(t *testing.T) {
	data := buildWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Data", "Valor", "Cliente"}))
		require.NoError(t, f.SetCellValue("Sheet1", "A2", 44127.0))
		require.NoError(t, f.SetCellValue("Sheet1", "B2", 1234.56))
		require.NoError(t, f.SetCellValue("Sheet1", "C2", "Client A"))

		dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A2", dateStyle))

		moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", moneyStyle))

		_, err = f.NewSheet("Despesas")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Despesas", "A1", &[]any{"Descrição", "Valor"}))
	})

	wb, err := Extract(data, "book.xlsx")
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)

	s := wb.Sheets[0]
	assert.Equal(t, "Sheet1", s.Name)
	assert.Equal(t, "2020-10-23", s.Rows[1][0])
	assert.Equal(t, "1,234.56", s.Rows[1][1], "non-date numbers keep their display string")
	assert.Equal(t, "Client A", s.Rows[1][2])
	assert.Equal(t, "Despesas", wb.Sheets[1].Name)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract(nil, "empty.csv")
	assert.True(t, errors.Is(err, ErrUnreadableFile))

	_, err = Extract([]byte("not a zip"), "broken.xlsx")
	assert.True(t, errors.Is(err, ErrUnreadableFile))

	_, err = Extract([]byte{0xD0, 0xCF, 0x11, 0xE0}, "legacy.xls")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Contains(t, err.Error(), ".xlsx")

	_, err = Extract([]byte{0x00, 0x01}, "blob")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestExtract_VisualKinds(t *testing.T) {
	wb, err := Extract([]byte("%PDF-1.4"), "proposal.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.KindPDF, wb.Kind)
	assert.Empty(t, wb.Sheets)
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }

	assert.True(t, isDateFormat(14, nil))
	assert.True(t, isDateFormat(22, nil))
	assert.False(t, isDateFormat(20, nil), "time only")
	assert.False(t, isDateFormat(4, nil))
	assert.True(t, isDateFormat(0, custom("dd/mm/yyyy")))
	assert.False(t, isDateFormat(0, custom(`[$R$-416] #,##0.00`)))
	assert.False(t, isDateFormat(0, custom(`"days" 0`)))
}
