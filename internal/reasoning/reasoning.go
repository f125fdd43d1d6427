// Package reasoning defines the remote reasoning capability the import
// pipeline depends on: classifying a sampled table region and extracting
// entities directly from a PDF or image.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/joselpq/arqcashflow/internal/jsonrepair"
	"github.com/joselpq/arqcashflow/internal/model"
)

// Service classifies table samples and extracts entities from documents.
// Both calls are fallible; callers isolate failures per region or file.
type Service interface {
	Classify(ctx context.Context, sample Sample, bctx BusinessContext) (*model.Classification, error)
	ExtractVisual(ctx context.Context, doc model.Document, bctx BusinessContext) (*Extraction, error)
}

// Sample is the representative slice of a table region sent for
// classification.
type Sample struct {
	Sheet     string
	Range     string
	Headers   []string
	Rows      [][]string
	TotalRows int
}

// SampleOf takes the header and at most n sample rows of a region.
func SampleOf(region model.TableRegion, n int) Sample {
	rows := region.SampleRows
	if len(rows) == 0 {
		rows = region.Data
	}
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return Sample{
		Sheet:     region.Sheet,
		Range:     region.Name,
		Headers:   region.Headers,
		Rows:      rows,
		TotalRows: len(region.Data),
	}
}

// Render formats the sample as a pipe-separated table.
func (s Sample) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: %s\nRange: %s\nData rows: %d\n\n", s.Sheet, s.Range, s.TotalRows)
	b.WriteString(strings.Join(s.Headers, " | "))
	b.WriteByte('\n')
	for _, row := range s.Rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Extraction is the raw entity records returned for a document, before
// they are decoded into drafts.
type Extraction struct {
	Records *jsonrepair.Result
	Usage   model.TokenUsage
}
