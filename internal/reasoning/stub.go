package reasoning

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/joselpq/arqcashflow/internal/model"
)

// Stub is a deterministic Service for tests and offline runs. Nil funcs
// return an error.
type Stub struct {
	ClassifyFunc      func(ctx context.Context, sample Sample, bctx BusinessContext) (*model.Classification, error)
	ExtractVisualFunc func(ctx context.Context, doc model.Document, bctx BusinessContext) (*Extraction, error)

	mu          sync.Mutex
	samples     []Sample
	classifyCtx []BusinessContext
	visualCalls int
}

var _ Service = (*Stub)(nil)

// Classify implements Service.
func (s *Stub) Classify(ctx context.Context, sample Sample, bctx BusinessContext) (*model.Classification, error) {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.classifyCtx = append(s.classifyCtx, bctx)
	s.mu.Unlock()
	if s.ClassifyFunc == nil {
		return nil, eris.New("reasoning: stub has no classify response")
	}
	return s.ClassifyFunc(ctx, sample, bctx)
}

// ExtractVisual implements Service.
func (s *Stub) ExtractVisual(ctx context.Context, doc model.Document, bctx BusinessContext) (*Extraction, error) {
	s.mu.Lock()
	s.visualCalls++
	s.mu.Unlock()
	if s.ExtractVisualFunc == nil {
		return nil, eris.New("reasoning: stub has no visual response")
	}
	return s.ExtractVisualFunc(ctx, doc, bctx)
}

// Samples returns the samples passed to Classify, in call order.
func (s *Stub) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// ClassifyContexts returns the business contexts passed to Classify.
func (s *Stub) ClassifyContexts() []BusinessContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BusinessContext(nil), s.classifyCtx...)
}

// VisualCalls returns how many times ExtractVisual was called.
func (s *Stub) VisualCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visualCalls
}
