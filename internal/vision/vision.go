// Package vision extracts contracts, receivables and expenses from PDFs and
// images in a single reasoning call.
package vision

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/jsonrepair"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/ocr"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/resilience"
	"github.com/joselpq/arqcashflow/internal/sheet"
	"github.com/joselpq/arqcashflow/internal/transform"
)

// ErrNoEntities is returned when a document yields no usable record.
var ErrNoEntities = eris.New("vision: no entities extracted")

// Result is the outcome of one document extraction.
type Result struct {
	Drafts *model.Drafts
	Usage  model.TokenUsage
	Layer  jsonrepair.Layer
}

// Extractor runs document extraction with an optional PDF text-layer hint.
type Extractor struct {
	svc          reasoning.Service
	text         ocr.Extractor
	maxHintChars int
	retry        resilience.RetryConfig
}

// New creates an Extractor. text may be nil to disable the text-layer hint.
func New(svc reasoning.Service, text ocr.Extractor, ocrCfg config.OCRConfig, imp config.ImportConfig) *Extractor {
	return &Extractor{
		svc:          svc,
		text:         text,
		maxHintChars: ocrCfg.MaxHintChars,
		retry:        resilience.ForModelCalls(imp, "vision"),
	}
}

// NewDocument wraps file bytes of a visual kind.
func NewDocument(data []byte, filename string, kind model.FileKind) model.Document {
	return model.Document{
		Filename:  filename,
		Kind:      kind,
		MediaType: sheet.MediaType(data, filename),
		Data:      data,
	}
}

// Extract sends doc for extraction and decodes the returned records into
// drafts. A failed call or an unusable reply fails the whole document.
func (e *Extractor) Extract(ctx context.Context, doc model.Document, bctx reasoning.BusinessContext) (*Result, error) {
	log := zap.L().With(zap.String("component", "vision"), zap.String("file", doc.Filename))

	if doc.Kind == model.KindPDF {
		doc = e.withTextHint(ctx, doc, log)
	}

	ext, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*reasoning.Extraction, error) {
		return e.svc.ExtractVisual(ctx, doc, bctx)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "vision: extract %s", doc.Filename)
	}
	if ext == nil || ext.Records == nil {
		return nil, eris.Wrapf(ErrNoEntities, "vision: %s", doc.Filename)
	}

	drafts := Decode(doc.Filename, ext.Records)
	if drafts.Len() == 0 {
		return nil, eris.Wrapf(ErrNoEntities, "vision: %s", doc.Filename)
	}

	log.Info("vision: document extracted",
		zap.String("layer", ext.Records.Layer.String()),
		zap.Int("contracts", len(drafts.Contracts)),
		zap.Int("receivables", len(drafts.Receivables)),
		zap.Int("expenses", len(drafts.Expenses)),
	)
	return &Result{Drafts: drafts, Usage: ext.Usage, Layer: ext.Records.Layer}, nil
}

// Decode turns recovered records into drafts. Each draft is attributed to
// the file plus its entity type and position.
func Decode(filename string, records *jsonrepair.Result) *model.Drafts {
	drafts := &model.Drafts{}
	for _, group := range []struct {
		et   model.EntityType
		recs []map[string]any
	}{
		{model.EntityContract, records.Contracts},
		{model.EntityReceivable, records.Receivables},
		{model.EntityExpense, records.Expenses},
	} {
		for i, rec := range group.recs {
			src := model.Source{Sheet: fmt.Sprintf("%s %s %d", filename, group.et, i+1)}
			transform.AddDraft(drafts, group.et, transform.FromRecord(group.et, rec), src)
		}
	}
	return drafts
}

func (e *Extractor) withTextHint(ctx context.Context, doc model.Document, log *zap.Logger) model.Document {
	if doc.Pages == 0 {
		if n, err := ocr.PageCount(doc.Data); err == nil {
			doc.Pages = n
		}
	}
	if e.text == nil || doc.TextHint != "" {
		return doc
	}
	text, err := e.text.ExtractText(ctx, doc.Data)
	if err != nil {
		log.Warn("vision: text layer unavailable", zap.Error(err))
		return doc
	}
	doc.TextHint = ocr.Truncate(text, e.maxHintChars)
	return doc
}
