// Package analyze classifies table regions through the reasoning service
// and validates the column mapping it returns.
package analyze

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/normalize"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/resilience"
)

// ErrEmptyMapping is returned when a non-skip classification maps no
// usable column.
var ErrEmptyMapping = eris.New("analyze: classification maps no usable column")

// Analyzer runs one classification per table region.
type Analyzer struct {
	svc        reasoning.Service
	retry      resilience.RetryConfig
	sampleRows int
}

// New creates an Analyzer. Only rate-limit failures are retried.
func New(svc reasoning.Service, cfg config.ImportConfig) *Analyzer {
	return &Analyzer{
		svc:        svc,
		retry:      resilience.ForModelCalls(cfg, "classify"),
		sampleRows: cfg.SampleRows,
	}
}

// Analyze classifies region. Any error means the region is excluded; it
// never affects sibling regions.
func (a *Analyzer) Analyze(ctx context.Context, region model.TableRegion, bctx reasoning.BusinessContext) (*model.RegionAnalysis, error) {
	log := zap.L().With(zap.String("component", "analyze"), zap.String("region", region.Name))

	sample := reasoning.SampleOf(region, a.sampleRows)
	c, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*model.Classification, error) {
		return a.svc.Classify(ctx, sample, bctx)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: classify %s", region.Name)
	}
	if c == nil {
		return nil, eris.Errorf("analyze: empty classification for %s", region.Name)
	}

	validated, dropped := ValidateMapping(*c, region.Headers)
	for _, d := range dropped {
		log.Debug("analyze: dropped mapping entry", zap.String("detail", d))
	}
	if validated.EntityType != model.EntitySkip && len(validated.Mapping) == 0 {
		return nil, eris.Wrapf(ErrEmptyMapping, "analyze: %s classified as %s", region.Name, validated.EntityType)
	}

	log.Info("analyze: region classified",
		zap.String("entity_type", string(validated.EntityType)),
		zap.Int("mapped_columns", len(validated.Mapping)),
		zap.Float64("confidence", validated.Confidence),
	)
	return &model.RegionAnalysis{Region: region, Classification: validated}, nil
}

// ValidateMapping keeps only mapping entries whose header exists in the
// region and whose field belongs to the classified entity type. Headers are
// matched exactly first, then by folded text. A missing or unknown transform
// falls back to the target field's kind. It returns the cleaned
// classification and a description of every dropped entry.
func ValidateMapping(c model.Classification, headers []string) (model.Classification, []string) {
	out := c
	out.Mapping = model.ColumnMapping{}
	if c.EntityType == model.EntitySkip {
		return out, nil
	}

	exact := make(map[string]bool, len(headers))
	folded := make(map[string]string, len(headers))
	for _, h := range headers {
		exact[h] = true
		key := normalize.Fold(h)
		if _, ok := folded[key]; !ok {
			folded[key] = h
		}
	}

	var dropped []string
	for header, fm := range c.Mapping {
		actual := header
		if !exact[header] {
			h, ok := folded[normalize.Fold(header)]
			if !ok {
				dropped = append(dropped, "unknown header "+header)
				continue
			}
			actual = h
		}

		target, ok := model.Targets.Lookup(c.EntityType, strings.TrimSpace(fm.Field))
		if !ok {
			dropped = append(dropped, header+": field "+fm.Field+" is not a "+string(c.EntityType)+" field")
			continue
		}
		fm.Field = target.Name
		if !fm.Transform.Valid() {
			fm.Transform = target.Kind
		}
		out.Mapping[actual] = fm
	}
	return out, dropped
}
