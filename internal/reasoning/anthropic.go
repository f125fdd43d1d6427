package reasoning

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
	"github.com/joselpq/arqcashflow/internal/jsonrepair"
	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/resilience"
	"github.com/joselpq/arqcashflow/pkg/anthropic"
)

const (
	defaultClassifyMaxTokens int64 = 4096
	defaultVisionMaxTokens   int64 = 16384
)

// AnthropicService implements Service with the Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewAnthropicService creates a Service backed by client.
func NewAnthropicService(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicService {
	return &AnthropicService{client: client, cfg: cfg}
}

// Classify asks the model for the entity type and column mapping of a
// sampled region.
func (s *AnthropicService) Classify(ctx context.Context, sample Sample, bctx BusinessContext) (*model.Classification, error) {
	maxTokens := s.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClassifyMaxTokens
	}
	zero := 0.0
	req := anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(ClassifySystemPrompt(bctx), s.cfg.CacheTTL),
		Messages:    []anthropic.Message{{Role: "user", Content: ClassifyUserPrompt(sample, bctx)}},
		Temperature: &zero,
	}

	resp, usage, err := s.send(ctx, "classify", req)
	if err != nil {
		return nil, eris.Wrapf(err, "reasoning: classify %s", sample.Range)
	}

	var c model.Classification
	if _, err := jsonrepair.ParseObject(resp.Text(), &c); err != nil {
		return nil, eris.Wrapf(err, "reasoning: parse classification for %s", sample.Range)
	}
	c.EntityType = model.EntityType(strings.ToLower(strings.TrimSpace(string(c.EntityType))))
	if !c.EntityType.Valid() {
		return nil, eris.Errorf("reasoning: unknown entity type %q for %s", c.EntityType, sample.Range)
	}
	c.Usage = usage
	return &c, nil
}

// ExtractVisual sends a PDF or image with the full target schema and
// recovers the three entity arrays from the reply.
func (s *AnthropicService) ExtractVisual(ctx context.Context, doc model.Document, bctx BusinessContext) (*Extraction, error) {
	maxTokens := s.cfg.VisionMaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}
	modelID := s.cfg.VisionModel
	if modelID == "" {
		modelID = s.cfg.Model
	}

	kind := anthropic.AttachmentImage
	if doc.Kind == model.KindPDF {
		kind = anthropic.AttachmentDocument
	}
	zero := 0.0
	req := anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(VisionSystemPrompt(bctx), s.cfg.CacheTTL),
		Messages: []anthropic.Message{{
			Role:        "user",
			Content:     VisionUserPrompt(doc, bctx),
			Attachments: []anthropic.Attachment{{Kind: kind, MediaType: doc.MediaType, Data: doc.Data}},
		}},
		Temperature: &zero,
	}

	resp, usage, err := s.send(ctx, "vision", req)
	if err != nil {
		return nil, eris.Wrapf(err, "reasoning: extract %s", doc.Filename)
	}
	if resp.Truncated() {
		zap.L().Warn("reasoning: vision response hit the token limit",
			zap.String("file", doc.Filename),
			zap.Int64("max_tokens", maxTokens),
		)
	}

	records, err := jsonrepair.Recover(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "reasoning: parse extraction for %s", doc.Filename)
	}
	return &Extraction{Records: records, Usage: usage}, nil
}

// send performs one call under the configured timeout, converts throttling
// statuses into resilience.TransientError, and records token usage.
func (s *AnthropicService) send(ctx context.Context, phase string, req anthropic.MessageRequest) (*anthropic.MessageResponse, model.TokenUsage, error) {
	if s.cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSecs)*time.Second)
		defer cancel()
	}

	resp, err := s.client.CreateMessage(ctx, req)
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
			err = resilience.NewTransientError(err, code).WithRetryAfter(anthropic.RetryAfter(err))
		}
		return nil, model.TokenUsage{}, err
	}

	resp.Usage.LogCost(req.Model, phase)
	usage := model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      resp.Usage.EstimateCost(req.Model),
	}
	return resp, usage, nil
}
