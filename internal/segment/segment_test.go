package segment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func mixedSheet() model.SheetData {
	return model.SheetData{Name: "Sheet1", Rows: [][]string{
		{"Client", "Project", "Value", "Date"},
		{"Client A", "Project X", "10000", "2024-01-01"},
		{"Client B", "Project Y", "5000", "2024-02-01"},
		{"", "", "", ""},
		{"", "", "", ""},
		{"Project", "Amount", "Due date", "Status"},
		{"Project X", "5000", "2024-03-01", "pending"},
		{"Project X", "5000", "2024-04-01", "pending"},
	}}
}

func TestCellBlank(t *testing.T) {
	assert.True(t, cellBlank(""))
	assert.True(t, cellBlank("   "))
	assert.True(t, cellBlank("-----"))
	assert.True(t, cellBlank("=== ***"))
	assert.True(t, cellBlank(" "))
	assert.False(t, cellBlank("0"))
	assert.False(t, cellBlank("#"))
	assert.False(t, cellBlank("-5"))
}

func TestDetectBlankRows(t *testing.T) {
	grid := [][]string{
		{"a", "b"},
		{"", ""},
		{"c", "d"},
		{"", ""},
		{"---", ""},
		{"e", "f"},
		{"", ""},
	}

	bounds := DetectBlankRows(grid)
	require.Len(t, bounds, 2, "trailing run is not between content")

	assert.Equal(t, model.Boundary{Kind: model.BoundaryRow, Position: 1, RunLength: 1, Confidence: 0.5}, bounds[0])
	assert.Equal(t, 3, bounds[1].Position)
	assert.Equal(t, 2, bounds[1].RunLength)
	assert.InDelta(t, 1.0, bounds[1].Confidence, 1e-9)
}

func TestDetectBlankColumns(t *testing.T) {
	grid := [][]string{
		{"", "a", "", "b", "c"},
		{"", "1", "", "2", "3"},
		{"", "1", "", "2", ""},
	}

	bounds := DetectBlankColumns(grid)
	require.Len(t, bounds, 1, "leading blank column is not a separator")
	assert.Equal(t, 2, bounds[0].Position)
	assert.InDelta(t, 1/1.5, bounds[0].Confidence, 1e-9)
}

func TestDetectBlankColumns_SparseColumnCountsAsBlank(t *testing.T) {
	grid := make([][]string, 40)
	for i := range grid {
		grid[i] = []string{"x", "", "y"}
	}
	grid[7][1] = "rare note"

	bounds := DetectBlankColumns(grid)
	require.Len(t, bounds, 1)
	assert.Equal(t, 1, bounds[0].Position)
}

func TestSegment_HomogeneousSheet(t *testing.T) {
	sheet := model.SheetData{Name: "Contracts", Rows: [][]string{
		{"Cliente", "Projeto", "Valor"},
		{"A", "Casa 1", "1000"},
		{"B", "Casa 2", "2000"},
		{"C", "Casa 3", "3000"},
	}}

	regions := Segment(sheet)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.Equal(t, model.Span{Start: 0, End: 4}, r.Rows)
	assert.Equal(t, model.Span{Start: 0, End: 3}, r.Cols)
	assert.Equal(t, "Contracts!A1:C4", r.Name)
	assert.True(t, r.HeaderFound)
	assert.Equal(t, []string{"Cliente", "Projeto", "Valor"}, r.Headers)
	assert.Len(t, r.Data, 3)
	assert.Equal(t, 2, r.SourceRow(0))
}

func TestSegment_TwoBlocks(t *testing.T) {
	regions := Segment(mixedSheet())
	require.Len(t, regions, 2)

	top, bottom := regions[0], regions[1]
	assert.Equal(t, model.Span{Start: 0, End: 3}, top.Rows)
	assert.Equal(t, model.Span{Start: 5, End: 8}, bottom.Rows)
	assert.LessOrEqual(t, top.Rows.End, 3, "separator rows excluded")
	assert.GreaterOrEqual(t, bottom.Rows.Start, 5)

	assert.Equal(t, []string{"Project", "Amount", "Due date", "Status"}, bottom.Headers)
	assert.Equal(t, 7, bottom.SourceRow(0))
	assert.Equal(t, "Sheet1!A6:D8", bottom.Name)
}

func TestSegment_SideBySideTables(t *testing.T) {
	sheet := model.SheetData{Name: "Resumo", Rows: [][]string{
		{"Descrição", "Valor", "", "Cliente", "Projeto"},
		{"Aluguel", "2000", "", "A", "Casa"},
		{"Luz", "300", "", "B", "Loja"},
	}}

	regions := Segment(sheet)
	require.Len(t, regions, 2)
	assert.Equal(t, model.Span{Start: 0, End: 2}, regions[0].Cols)
	assert.Equal(t, model.Span{Start: 3, End: 5}, regions[1].Cols)
	assert.Equal(t, []string{"Cliente", "Projeto"}, regions[1].Headers)
}

func TestSegment_DiscardsSingleRowCells(t *testing.T) {
	sheet := model.SheetData{Name: "S", Rows: [][]string{
		{"Relatório financeiro 2024", ""},
		{"", ""},
		{"", ""},
		{"Descrição", "Valor"},
		{"Aluguel", "2000"},
	}}

	regions := Segment(sheet)
	require.Len(t, regions, 1)
	assert.Equal(t, 3, regions[0].Rows.Start)
}

func TestSegment_TitleAboveHeader(t *testing.T) {
	sheet := model.SheetData{Name: "S", Rows: [][]string{
		{"Despesas 2024", "", ""},
		{"Descrição", "Valor", "Vencimento"},
		{"Aluguel", "2000", "05/01/2024"},
	}}

	regions := Segment(sheet)
	require.Len(t, regions, 1)
	assert.Equal(t, 1, regions[0].HeaderRow)
	assert.Equal(t, 2, regions[0].DataStart)
}

func TestSegment_Empty(t *testing.T) {
	assert.Empty(t, Segment(model.SheetData{Name: "Empty"}))
	assert.Empty(t, Segment(model.SheetData{Name: "One", Rows: [][]string{{"only header"}}}))
}

func TestDetectHeader(t *testing.T) {
	t.Run("keyword row wins", func(t *testing.T) {
		idx, found := DetectHeader([][]string{
			{"", "", ""},
			{"Nome do cliente", "Valor total", "Data"},
			{"A", "10", "2024-01-01"},
		})
		assert.True(t, found)
		assert.Equal(t, 1, idx)
	})

	t.Run("numeric rows default to zero", func(t *testing.T) {
		idx, found := DetectHeader([][]string{
			{"1", "2", "3"},
			{"4", "5", "6"},
		})
		assert.False(t, found)
		assert.Equal(t, 0, idx)
	})
}

func TestHasKeyword(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"Data", true},
		{"Datas de vencimento", true},
		{"Valores", true},
		{"Clients", true},
		{"Descrição", true},
		{"database", false},
		{"duet", false},
		{"typewriter", false},
		{"Acme Ltda", false},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, hasKeyword(tt.cell))
		})
	}
}

func TestDetectHeader_PrefixWordsAreData(t *testing.T) {
	// "Database" and "Duet" only start with keywords, so the data row must
	// not outscore the plain header above it.
	idx, found := DetectHeader([][]string{
		{"Item", "Qty", "Notes"},
		{"Database", "Duet", "Typewriter"},
		{"x", "1", "y"},
	})
	assert.True(t, found)
	assert.Equal(t, 0, idx)
}

func TestRegionConfidence(t *testing.T) {
	// Header without keywords, one data row, two filled columns.
	sheet := model.SheetData{Name: "S", Rows: [][]string{
		{"1", "2"},
		{"", ""},
		{"", ""},
		{"3", "4"},
		{"5", "6"},
	}}

	regions := Segment(sheet)
	require.Len(t, regions, 1)
	assert.InDelta(t, 0.3, regions[0].Confidence, 1e-9)
	assert.False(t, regions[0].HeaderFound)
}

func TestSegment_LargeSheetIsFast(t *testing.T) {
	rows := make([][]string, 0, 20000)
	rows = append(rows, []string{"Descrição", "Valor", "Data", "Categoria"})
	for i := 0; i < 19999; i++ {
		rows = append(rows, []string{fmt.Sprintf("item %d", i), "100,00", "01/02/2024", "Outros"})
		if i%5000 == 4999 {
			rows = append(rows, []string{"", "", "", ""}, []string{"", "", "", ""})
		}
	}

	start := time.Now()
	regions := Segment(model.SheetData{Name: "Big", Rows: rows})
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, regions)
}
