package pipeline

import (
	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/model"
)

// BatchConfig sizes batches by predicted response size.
type BatchConfig struct {
	// ResponseRatio and ResponseOverhead predict response characters as
	// ratio*input + overhead.
	ResponseRatio    float64
	ResponseOverhead int
	// Budget caps the predicted response of one batch.
	Budget int
	// LargeThreshold isolates a region whose own prediction exceeds it and
	// bounds the row-range sub-batches it is later split into.
	LargeThreshold int
}

// BatchConfigFrom reads the batching knobs from the import config.
func BatchConfigFrom(cfg config.ImportConfig) BatchConfig {
	return BatchConfig{
		ResponseRatio:    cfg.ResponseRatio,
		ResponseOverhead: cfg.ResponseOverhead,
		Budget:           cfg.BatchBudget,
		LargeThreshold:   cfg.LargeThreshold,
	}
}

// Predict returns the predicted response size for chars of input.
func (c BatchConfig) Predict(chars int) int {
	return int(c.ResponseRatio*float64(chars)) + c.ResponseOverhead
}

// Batch is a group of regions analysed together before the next batch starts.
type Batch struct {
	Regions []model.TableRegion
	// Large marks a batch holding one oversized region.
	Large     bool
	Predicted int
}

// PlanBatches assigns regions, in order, to batches whose predicted response
// stays under the budget. A region predicted above the large threshold gets
// a batch of its own. A single region above the budget is never dropped.
func PlanBatches(regions []model.TableRegion, cfg BatchConfig) []Batch {
	var (
		out   []Batch
		cur   Batch
		chars int
	)
	flush := func() {
		if len(cur.Regions) > 0 {
			out = append(out, cur)
		}
		cur, chars = Batch{}, 0
	}

	for _, r := range regions {
		size := r.CharSize()
		if p := cfg.Predict(size); p > cfg.LargeThreshold {
			flush()
			out = append(out, Batch{Regions: []model.TableRegion{r}, Large: true, Predicted: p})
			continue
		}
		if len(cur.Regions) > 0 && cfg.Predict(chars+size) > cfg.Budget {
			flush()
		}
		cur.Regions = append(cur.Regions, r)
		chars += size
		cur.Predicted = cfg.Predict(chars)
	}
	flush()
	return out
}

// SplitRows cuts a classified region into row ranges whose predicted
// response stays under the large threshold. Every chunk keeps the headers
// and holds at least one row.
func SplitRows(region model.TableRegion, cfg BatchConfig) []model.TableRegion {
	headerChars := 0
	for _, h := range region.Headers {
		headerChars += len(h)
	}

	var out []model.TableRegion
	start, chars := 0, headerChars
	for i, row := range region.Data {
		rowChars := 0
		for _, c := range row {
			rowChars += len(c)
		}
		if i > start && cfg.Predict(chars+rowChars) > cfg.LargeThreshold {
			out = append(out, region.WithRows(start, i))
			start, chars = i, headerChars
		}
		chars += rowChars
	}
	if start < len(region.Data) || len(out) == 0 {
		out = append(out, region.WithRows(start, len(region.Data)))
	}
	return out
}
