package segment

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/normalize"
)

const (
	// MaxSampleRows bounds the rows shown to the classifier per region.
	MaxSampleRows = 20
	headerScanRows = 5
	minRegionScore = 0.3
)

// Segment partitions a sheet into table regions. A sheet with no interior
// blank runs is one region at confidence 1.0; otherwise every cell of the
// row-partition by column-partition product becomes a candidate region.
func Segment(sheet model.SheetData) []model.TableRegion {
	log := zap.L().With(zap.String("component", "segment"), zap.String("sheet", sheet.Name))

	grid := sheet.Rows
	if len(grid) == 0 {
		return nil
	}
	width := sheet.Width()

	blankRows, blankCols := scan(grid)
	rowBounds := runs(blankRows, model.BoundaryRow, 2)
	colBounds := runs(blankCols, model.BoundaryColumn, 1.5)

	if len(rowBounds) == 0 && len(colBounds) == 0 {
		r, ok := buildRegion(sheet, model.Span{Start: 0, End: len(grid)}, model.Span{Start: 0, End: width})
		if !ok {
			log.Debug("segment: sheet holds no table")
			return nil
		}
		r.Confidence = 1.0
		log.Debug("segment: homogeneous sheet", zap.String("region", r.Name))
		return []model.TableRegion{r}
	}

	rowParts := partitions(rowBounds, len(grid))
	colParts := partitions(colBounds, width)

	var regions []model.TableRegion
	for _, rs := range rowParts {
		for _, cs := range colParts {
			r, ok := buildRegion(sheet, rs, cs)
			if !ok {
				continue
			}
			if r.Confidence < minRegionScore {
				log.Debug("segment: dropping low-confidence region",
					zap.String("region", r.Name),
					zap.Float64("confidence", r.Confidence),
				)
				continue
			}
			regions = append(regions, r)
		}
	}

	log.Debug("segment: partitioned sheet",
		zap.Int("row_boundaries", len(rowBounds)),
		zap.Int("column_boundaries", len(colBounds)),
		zap.Int("regions", len(regions)),
	)
	return regions
}

// partitions turns boundaries into the spans between them, sheet edges included.
func partitions(bounds []model.Boundary, size int) []model.Span {
	var out []model.Span
	start := 0
	for _, b := range bounds {
		out = append(out, model.Span{Start: start, End: b.Position})
		start = b.End()
	}
	return append(out, model.Span{Start: start, End: size})
}

// buildRegion trims blank edges inside the partition cell and scores it.
// Cells with fewer than two non-blank rows are rejected.
func buildRegion(sheet model.SheetData, rs, cs model.Span) (model.TableRegion, bool) {
	grid := sheet.Rows

	rowHas := func(r int) bool {
		row := grid[r]
		for c := cs.Start; c < cs.End && c < len(row); c++ {
			if !cellBlank(row[c]) {
				return true
			}
		}
		return false
	}

	nonBlank := 0
	first, last := -1, -1
	colUsed := make([]bool, cs.Len())
	for r := rs.Start; r < rs.End; r++ {
		if !rowHas(r) {
			continue
		}
		nonBlank++
		if first < 0 {
			first = r
		}
		last = r
		row := grid[r]
		for c := cs.Start; c < cs.End && c < len(row); c++ {
			if !cellBlank(row[c]) {
				colUsed[c-cs.Start] = true
			}
		}
	}
	if nonBlank < 2 {
		return model.TableRegion{}, false
	}

	c0, c1 := 0, len(colUsed)
	for c0 < c1 && !colUsed[c0] {
		c0++
	}
	for c1 > c0 && !colUsed[c1-1] {
		c1--
	}
	rows := model.Span{Start: first, End: last + 1}
	cols := model.Span{Start: cs.Start + c0, End: cs.Start + c1}

	sub := make([][]string, 0, rows.Len())
	for r := rows.Start; r < rows.End; r++ {
		sub = append(sub, slice(grid[r], cols))
	}

	hdr, found := DetectHeader(sub)
	region := model.TableRegion{
		Sheet:       sheet.Name,
		Name:        rangeName(sheet.Name, rows, cols),
		Rows:        rows,
		Cols:        cols,
		HeaderRow:   rows.Start + hdr,
		HeaderFound: found,
		Headers:     headers(sub[hdr]),
		Data:        sub[hdr+1:],
		DataStart:   rows.Start + hdr + 1,
	}

	dataRows, filled := 0, 0
	for _, row := range region.Data {
		n := filledCells(row)
		if n == 0 {
			continue
		}
		dataRows++
		filled += n
		if len(region.SampleRows) < MaxSampleRows {
			region.SampleRows = append(region.SampleRows, row)
		}
	}
	if dataRows == 0 {
		return model.TableRegion{}, false
	}

	score := 0.3
	if found {
		score += 0.3
	}
	if dataRows >= 3 {
		score += 0.2
	}
	if float64(filled)/float64(dataRows) >= 3 {
		score += 0.2
	}
	region.Confidence = math.Min(1, score)
	return region, true
}

func slice(row []string, cols model.Span) []string {
	out := make([]string, cols.Len())
	for c := cols.Start; c < cols.End; c++ {
		if c < len(row) {
			out[c-cols.Start] = strings.TrimSpace(row[c])
		}
	}
	return out
}

// headers names unlabeled columns by position so every mapping key is unique.
func headers(row []string) []string {
	out := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column " + columnLetter(i)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + " (" + strconv.Itoa(n+1) + ")"
		} else {
			seen[h] = 1
		}
		out[i] = h
	}
	return out
}

func filledCells(row []string) int {
	n := 0
	for _, c := range row {
		if !cellBlank(c) {
			n++
		}
	}
	return n
}

func rangeName(sheet string, rows, cols model.Span) string {
	from, err1 := excelize.CoordinatesToCellName(cols.Start+1, rows.Start+1)
	to, err2 := excelize.CoordinatesToCellName(cols.End, rows.End)
	if err1 != nil || err2 != nil {
		return sheet
	}
	name := sheet
	if strings.ContainsAny(name, " -!'()") {
		name = "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name + "!" + from + ":" + to
}

func columnLetter(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return strconv.Itoa(i + 1)
	}
	return name
}

// headerKeywords are folded domain terms that signal a header row.
var headerKeywords = []string{
	"nome", "name", "data", "date", "valor", "value", "amount", "montante",
	"descricao", "description", "categoria", "category", "projeto", "project",
	"cliente", "client", "customer", "fornecedor", "vendor", "supplier",
	"parcela", "installment", "tipo", "type", "vencimento", "due", "status",
}

// DetectHeader scores the first five rows and returns the best one when it
// reaches 3 points. Otherwise row 0 is returned with found=false.
func DetectHeader(rows [][]string) (int, bool) {
	best, bestScore := 0, -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		s := headerScore(rows[i])
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if bestScore >= 3 {
		return best, true
	}
	return 0, false
}

func headerScore(row []string) int {
	if len(row) == 0 {
		return 0
	}
	text, filled := 0, 0
	keyword := false
	for _, c := range row {
		c = strings.TrimSpace(c)
		if cellBlank(c) {
			continue
		}
		filled++
		if normalize.NumericLike(c) {
			continue
		}
		text++
		if !keyword && hasKeyword(c) {
			keyword = true
		}
	}

	score := text
	if score > 5 {
		score = 5
	}
	if keyword {
		score += 3
	}
	if float64(filled)/float64(len(row)) > 0.5 {
		score += 2
	}
	return score
}

func hasKeyword(cell string) bool {
	for _, tok := range normalize.Tokens(cell) {
		if keywordSet[tok] {
			return true
		}
	}
	return false
}

// keywordSet holds each keyword and its plural forms; tokens must match
// whole so "database" or "duet" do not count.
var keywordSet = func() map[string]bool {
	m := make(map[string]bool, len(headerKeywords)*3)
	for _, kw := range headerKeywords {
		m[kw] = true
		m[kw+"s"] = true
		m[kw+"es"] = true
	}
	return m
}()
