package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/jsonrepair"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeText struct {
	text  string
	err   error
	calls int
}

func (f *fakeText) ExtractText(_ context.Context, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func importCfg() config.ImportConfig {
	return config.ImportConfig{RetryAttempts: 2, RetryInitialBackoffMs: 1, RetryMaxBackoffMs: 2}
}

func proposalRecords() *jsonrepair.Result {
	return &jsonrepair.Result{
		Contracts: []map[string]any{
			{"client": "Ana Souza", "projectName": "Casa Ana", "totalValue": 30000.0, "signedDate": "2024-03-10"},
		},
		Receivables: []map[string]any{
			{"projectName": "Casa Ana", "amount": "R$ 10.000,00", "expectedDate": "10/04/2024", "description": "Parcela 1/3"},
			{"contractRef": "Casa Ana", "amount": 10000.0, "expectedDate": "2024-05-10", "description": "Parcela 2/3"},
		},
		Layer: jsonrepair.LayerDirect,
	}
}

func TestExtract_PDFWithTextHint(t *testing.T) {
	var seen model.Document
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, doc model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			seen = doc
			return &reasoning.Extraction{Records: proposalRecords(), Usage: model.TokenUsage{InputTokens: 3000, OutputTokens: 400}}, nil
		},
	}
	text := &fakeText{text: "PROPOSTA " + strings.Repeat("x", 100)}

	ext := New(stub, text, config.OCRConfig{MaxHintChars: 20}, importCfg())
	doc := NewDocument([]byte("%PDF-1.4 not really"), "proposta.pdf", model.KindPDF)
	res, err := ext.Extract(context.Background(), doc, reasoning.ContextFor(""))
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", seen.MediaType)
	assert.Equal(t, "PROPOSTA xxxxxxxxxxx", seen.TextHint)
	assert.Equal(t, 1, text.calls)

	require.Len(t, res.Drafts.Contracts, 1)
	c := res.Drafts.Contracts[0]
	assert.Equal(t, "Ana Souza", *c.ClientName)
	assert.Equal(t, 30000.0, *c.TotalValue)
	assert.Equal(t, model.Date("2024-03-10"), *c.SignedDate)
	assert.Equal(t, "proposta.pdf contract 1", c.Source.Sheet)

	require.Len(t, res.Drafts.Receivables, 2)
	r := res.Drafts.Receivables[0]
	assert.Equal(t, "Casa Ana", *r.ContractRef)
	assert.Equal(t, 10000.0, *r.Amount)
	assert.Equal(t, model.Date("2024-04-10"), *r.ExpectedDate)
	assert.Empty(t, res.Drafts.Expenses)
	assert.Equal(t, int64(3000), res.Usage.InputTokens)
	assert.Equal(t, jsonrepair.LayerDirect, res.Layer)
}

func TestExtract_TextLayerFailureIsOnlyAWarning(t *testing.T) {
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, doc model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			assert.Empty(t, doc.TextHint)
			return &reasoning.Extraction{Records: proposalRecords()}, nil
		},
	}
	ext := New(stub, &fakeText{err: errors.New("encrypted")}, config.OCRConfig{}, importCfg())

	_, err := ext.Extract(context.Background(), NewDocument([]byte("%PDF"), "a.pdf", model.KindPDF), reasoning.ContextFor(""))
	require.NoError(t, err)
}

func TestExtract_ImageSkipsTextLayer(t *testing.T) {
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, _ model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			return &reasoning.Extraction{Records: &jsonrepair.Result{
				Expenses: []map[string]any{{"description": "Conta de luz", "amount": 350.9, "status": "pago"}},
			}}, nil
		},
	}
	text := &fakeText{text: "unused"}

	res, err := New(stub, text, config.OCRConfig{}, importCfg()).
		Extract(context.Background(), NewDocument([]byte{0x89, 'P', 'N', 'G'}, "luz.png", model.KindImage), reasoning.ContextFor(""))
	require.NoError(t, err)
	assert.Equal(t, 0, text.calls)
	require.Len(t, res.Drafts.Expenses, 1)
	assert.Equal(t, model.StatusPaid, *res.Drafts.Expenses[0].Status)
}

func TestExtract_NoEntities(t *testing.T) {
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, _ model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			return &reasoning.Extraction{Records: &jsonrepair.Result{
				Contracts: []map[string]any{{"unknownKey": "x"}},
			}}, nil
		},
	}

	_, err := New(stub, nil, config.OCRConfig{}, importCfg()).
		Extract(context.Background(), NewDocument([]byte{0xff, 0xd8, 0xff}, "x.jpg", model.KindImage), reasoning.ContextFor(""))
	assert.ErrorIs(t, err, ErrNoEntities)
}

func TestExtract_ServiceFailureIsFatal(t *testing.T) {
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, _ model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			return nil, unrecoverableErr()
		},
	}

	_, err := New(stub, nil, config.OCRConfig{}, importCfg()).
		Extract(context.Background(), NewDocument([]byte{0xff, 0xd8, 0xff}, "x.jpg", model.KindImage), reasoning.ContextFor(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, jsonrepair.ErrUnrecoverable)
	assert.Equal(t, 1, stub.VisualCalls())
}

func TestExtract_RetriesRateLimit(t *testing.T) {
	calls := 0
	stub := &reasoning.Stub{
		ExtractVisualFunc: func(_ context.Context, _ model.Document, _ reasoning.BusinessContext) (*reasoning.Extraction, error) {
			calls++
			if calls == 1 {
				return nil, resilience.NewTransientError(errors.New("slow down"), 429)
			}
			return &reasoning.Extraction{Records: proposalRecords()}, nil
		},
	}

	_, err := New(stub, nil, config.OCRConfig{}, importCfg()).
		Extract(context.Background(), NewDocument([]byte{0xff, 0xd8, 0xff}, "x.jpg", model.KindImage), reasoning.ContextFor(""))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDecode_SkipsEmptyRecords(t *testing.T) {
	d := Decode("f.pdf", &jsonrepair.Result{
		Receivables: []map[string]any{{}, {"amount": 100.0}},
	})
	require.Len(t, d.Receivables, 1)
	assert.Equal(t, "f.pdf receivable 2", d.Receivables[0].Source.Sheet)
}

func unrecoverableErr() error {
	_, err := jsonrepair.Recover("not json")
	return err
}
