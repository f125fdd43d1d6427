// Package pipeline orchestrates one file import: extraction, segmentation,
// batched classification, deterministic transformation, inference and
// ordered persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joselpq/arqcashflow/internal/analyze"
	"github.com/joselpq/arqcashflow/internal/bulk"
	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/ocr"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/sheet"
	"github.com/joselpq/arqcashflow/internal/store"
	"github.com/joselpq/arqcashflow/internal/transform"
	"github.com/joselpq/arqcashflow/internal/vision"
)

var (
	// ErrNoClassification is returned when every table region of a file
	// failed classification.
	ErrNoClassification = eris.New("pipeline: no table region could be classified")
	// ErrFileTooLarge is returned for uploads above import.max_file_mb.
	ErrFileTooLarge = eris.New("pipeline: file too large")
	// ErrNoTenant is returned for a persisting import without a tenant.
	ErrNoTenant = eris.New("pipeline: tenant is required")
)

// Input is one file to import.
type Input struct {
	Data     []byte
	Filename string
	// Vertical overrides import.business_vertical when set.
	Vertical string
	Tenant   string
	DryRun   bool
	// Today anchors status inference; zero means the current UTC date.
	Today model.Date
}

// Pipeline runs imports. It is safe for concurrent use; the pacing limiter
// is shared by all imports.
type Pipeline struct {
	cfg      config.ImportConfig
	store    store.Store
	analyzer *analyze.Analyzer
	vision   *vision.Extractor
	creator  *bulk.Creator
	batch    BatchConfig
	pace     *rate.Limiter
}

// New creates a Pipeline. st may be nil when only dry runs are performed.
func New(cfg *config.Config, st store.Store, svc reasoning.Service, text ocr.Extractor) *Pipeline {
	limit := rate.Inf
	if cfg.Import.InterBatchDelayMs > 0 {
		limit = rate.Every(time.Duration(cfg.Import.InterBatchDelayMs) * time.Millisecond)
	}
	return &Pipeline{
		cfg:      cfg.Import,
		store:    st,
		analyzer: analyze.New(svc, cfg.Import),
		vision:   vision.New(svc, text, cfg.OCR, cfg.Import),
		creator:  bulk.New(),
		batch:    BatchConfigFrom(cfg.Import),
		pace:     rate.NewLimiter(limit, 1),
	}
}

// Import processes one file. Structural failures and total classification
// failure are returned as errors; everything else is reported in the result.
func (p *Pipeline) Import(ctx context.Context, in Input) (*model.ImportResult, error) {
	importID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("import_id", importID),
		zap.String("file", in.Filename),
		zap.String("tenant", in.Tenant),
	)

	if limitMB := p.cfg.MaxFileMB; limitMB > 0 && len(in.Data) > limitMB<<20 {
		return nil, eris.Wrapf(ErrFileTooLarge, "pipeline: %s is %d bytes, limit %d MB", in.Filename, len(in.Data), limitMB)
	}
	if !in.DryRun && (in.Tenant == "" || p.store == nil) {
		return nil, ErrNoTenant
	}
	today := in.Today
	if today == "" {
		today = model.NewDate(time.Now().UTC())
	}
	vertical := in.Vertical
	if vertical == "" {
		vertical = p.cfg.BusinessVertical
	}
	bctx := reasoning.ContextFor(vertical)

	start := time.Now()
	wb, err := sheet.Extract(in.Data, in.Filename)
	if err != nil {
		return nil, err
	}

	res := &model.ImportResult{
		ImportID: importID,
		Filename: in.Filename,
		Kind:     wb.Kind,
		DryRun:   in.DryRun,
		Errors:   []string{},
		Warnings: []string{},
	}

	var tenant store.EntityStore
	known := KnownContracts{}
	if p.store != nil && in.Tenant != "" {
		tenant = p.store.Tenant(store.Scope{TenantID: in.Tenant, ImportID: importID})
		existing, err := tenant.ListContracts(ctx)
		if err != nil {
			log.Warn("pipeline: could not load known contracts", zap.Error(err))
			res.Warnings = append(res.Warnings, "known contracts unavailable: "+err.Error())
		}
		names := make([]string, 0, len(existing))
		for _, c := range existing {
			names = append(names, c.ProjectName)
		}
		known = known.With(names...)
	}

	var drafts *model.Drafts
	if wb.Kind.Visual() {
		drafts, err = p.importVisual(ctx, in, wb.Kind, bctx.WithKnownContracts(known.Names()), res)
	} else {
		drafts, err = p.importTabular(ctx, wb, bctx, known, res)
	}
	if err != nil {
		return nil, err
	}

	res.Extracted = model.Counts{
		Contracts:   len(drafts.Contracts),
		Receivables: len(drafts.Receivables),
		Expenses:    len(drafts.Expenses),
	}

	fin := transform.PostProcessEntities(drafts, today)
	for _, d := range fin.Dropped {
		res.Errors = append(res.Errors, d.String())
	}

	if in.DryRun {
		res.Created = fin.Counts()
		res.Success = true
	} else {
		report := p.creator.Create(ctx, tenant, fin)
		res.Created = report.Created
		res.Success = report.Success
		res.Errors = append(res.Errors, report.Errors...)
	}

	log.Info("pipeline: import complete",
		zap.String("kind", string(res.Kind)),
		zap.Bool("success", res.Success),
		zap.Bool("dry_run", res.DryRun),
		zap.Int("regions", res.Regions),
		zap.Int("batches", res.Batches),
		zap.Int("created", res.Created.Total()),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int64("input_tokens", res.Usage.InputTokens),
		zap.Int64("output_tokens", res.Usage.OutputTokens),
		zap.Float64("cost_usd", res.Usage.CostUSD),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// importVisual sends a PDF or image through one extraction call. Any
// failure fails the file.
func (p *Pipeline) importVisual(ctx context.Context, in Input, kind model.FileKind, bctx reasoning.BusinessContext, res *model.ImportResult) (*model.Drafts, error) {
	res.Batches = 1
	if err := p.pace.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: pacing")
	}
	out, err := p.vision.Extract(ctx, vision.NewDocument(in.Data, in.Filename, kind), bctx)
	if err != nil {
		return nil, err
	}
	res.Usage.Add(out.Usage)
	return out.Drafts, nil
}

// IsStructural reports whether err means the file itself could not be
// accepted, as opposed to a failure of the reasoning service.
func IsStructural(err error) bool {
	return errors.Is(err, sheet.ErrUnreadableFile) ||
		errors.Is(err, sheet.ErrUnsupportedFormat) ||
		errors.Is(err, ErrFileTooLarge)
}

func regionLabel(r model.TableRegion) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s rows %d-%d", r.Sheet, r.Rows.Start+1, r.Rows.End)
}
