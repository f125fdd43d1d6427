// Package segment partitions a sheet grid into candidate table regions
// separated by blank row and column runs.
package segment

import (
	"math"
	"strings"

	"github.com/joselpq/arqcashflow/internal/model"
)

const (
	// columnBlankRatio is the share of empty cells at which a column counts as blank.
	columnBlankRatio = 0.95
	// minBoundaryConfidence discards weaker separators.
	minBoundaryConfidence = 0.5
)

// cellBlank reports whether a cell is empty or holds only separator glyphs
// such as "----" or "====".
func cellBlank(c string) bool {
	for _, r := range c {
		if !strings.ContainsRune(" \t\r\n\u00a0-_=.*|/\\~", r) {
			return false
		}
	}
	return true
}

// scan computes row and column blankness in one pass over the grid.
func scan(grid [][]string) (blankRows []bool, blankCols []bool) {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	blankRows = make([]bool, len(grid))
	emptyPerCol := make([]int, width)
	for r, row := range grid {
		rowBlank := true
		for c := 0; c < width; c++ {
			empty := c >= len(row) || cellBlank(row[c])
			if empty {
				emptyPerCol[c]++
			} else {
				rowBlank = false
			}
		}
		blankRows[r] = rowBlank
	}

	blankCols = make([]bool, width)
	if len(grid) == 0 {
		return blankRows, blankCols
	}
	for c, n := range emptyPerCol {
		blankCols[c] = float64(n)/float64(len(grid)) >= columnBlankRatio
	}
	return blankRows, blankCols
}

// runs emits a boundary for every maximal blank run that has non-blank
// lines on both sides.
func runs(blank []bool, kind model.BoundaryKind, divisor float64) []model.Boundary {
	var out []model.Boundary
	seenContent := false
	start := -1
	for i, b := range blank {
		if b {
			if seenContent && start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n := i - start
			out = append(out, model.Boundary{
				Kind:       kind,
				Position:   start,
				RunLength:  n,
				Confidence: math.Min(1, float64(n)/divisor),
			})
			start = -1
		}
		seenContent = true
	}

	kept := out[:0]
	for _, b := range out {
		if b.Confidence >= minBoundaryConfidence {
			kept = append(kept, b)
		}
	}
	return kept
}

// DetectBlankRows returns horizontal separators. A single blank row scores
// 0.5, two or more score 1.
func DetectBlankRows(grid [][]string) []model.Boundary {
	blankRows, _ := scan(grid)
	return runs(blankRows, model.BoundaryRow, 2)
}

// DetectBlankColumns returns vertical separators. A column is blank when at
// least 95% of its cells are empty; one such column already scores 0.67.
func DetectBlankColumns(grid [][]string) []model.Boundary {
	_, blankCols := scan(grid)
	return runs(blankCols, model.BoundaryColumn, 1.5)
}
