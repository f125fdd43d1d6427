package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/segment"
	"github.com/joselpq/arqcashflow/internal/transform"
)

// importTabular segments every sheet, then runs the batches in order. Regions
// of one batch are classified concurrently; the known-contracts accumulator
// is threaded from each batch into the next.
func (p *Pipeline) importTabular(ctx context.Context, wb *model.Workbook, bctx reasoning.BusinessContext, known KnownContracts, res *model.ImportResult) (*model.Drafts, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("import_id", res.ImportID))

	var regions []model.TableRegion
	for _, sh := range wb.Sheets {
		regions = append(regions, segment.Segment(sh)...)
	}
	res.Regions = len(regions)

	all := &model.Drafts{}
	if len(regions) == 0 {
		res.Warnings = append(res.Warnings, "no table regions found")
		return all, nil
	}

	batches := PlanBatches(regions, p.batch)
	res.Batches = len(batches)
	log.Info("pipeline: planned batches",
		zap.Int("regions", len(regions)),
		zap.Int("batches", len(batches)),
	)

	var (
		classified int
		firstErr   error
	)
	for i, b := range batches {
		if err := p.pace.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: pacing")
		}

		out := p.runBatch(ctx, b, bctx.WithKnownContracts(known.Names()))
		for _, o := range out {
			if o.err != nil {
				if firstErr == nil {
					firstErr = o.err
				}
				res.Warnings = append(res.Warnings, regionLabel(o.region)+": classification failed: "+o.err.Error())
				continue
			}
			classified++
			res.Usage.Add(o.analysis.Classification.Usage)
			if o.analysis.Classification.EntityType == model.EntitySkip {
				res.Warnings = append(res.Warnings, regionLabel(o.region)+": skipped, no financial entities")
			}
		}

		drafts := p.extractBatch(b, out)
		all.Merge(drafts)
		known = known.With(drafts.ProjectNames()...)

		log.Debug("pipeline: batch done",
			zap.Int("batch", i+1),
			zap.Int("regions", len(b.Regions)),
			zap.Bool("large", b.Large),
			zap.Int("drafts", drafts.Len()),
			zap.Int("known_contracts", known.Len()),
		)
	}

	if classified == 0 {
		return nil, eris.Wrapf(ErrNoClassification, "pipeline: %d regions failed, first error: %v", len(regions), firstErr)
	}
	return all, nil
}

type regionOutcome struct {
	region   model.TableRegion
	analysis *model.RegionAnalysis
	err      error
}

// runBatch classifies the regions of one batch concurrently. One region's
// failure never affects its siblings. Outcomes keep region order.
func (p *Pipeline) runBatch(ctx context.Context, b Batch, bctx reasoning.BusinessContext) []regionOutcome {
	out := make([]regionOutcome, len(b.Regions))

	var g errgroup.Group
	g.SetLimit(max(p.cfg.MaxConcurrency, 1))
	for i, r := range b.Regions {
		out[i].region = r
		g.Go(func() error {
			a, err := p.analyzer.Analyze(ctx, r, bctx)
			out[i].analysis, out[i].err = a, err
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return out
}

// extractBatch turns classified regions into drafts. A large region is cut
// into row-range sub-batches that reuse its mapping.
func (p *Pipeline) extractBatch(b Batch, out []regionOutcome) *model.Drafts {
	drafts := &model.Drafts{}
	for _, o := range out {
		if o.err != nil || o.analysis == nil {
			continue
		}
		parts := []model.TableRegion{o.analysis.Region}
		if b.Large {
			parts = SplitRows(o.analysis.Region, p.batch)
		}
		for _, part := range parts {
			drafts.Merge(transform.ExtractRegion(part, o.analysis.Classification))
		}
	}
	return drafts
}
