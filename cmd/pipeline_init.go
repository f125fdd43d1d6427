package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/ocr"
	"github.com/joselpq/arqcashflow/internal/pipeline"
	"github.com/joselpq/arqcashflow/internal/reasoning"
	"github.com/joselpq/arqcashflow/internal/store"
	anthropicpkg "github.com/joselpq/arqcashflow/pkg/anthropic"
)

// pipelineEnv holds the store and the pipeline used by the import and serve
// commands.
type pipelineEnv struct {
	Store    store.Store // nil for dry runs
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "arqcashflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline validates config for mode, opens and migrates the store
// unless mode is "dry-run", and builds the Pipeline. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	text, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if mode != "dry-run" {
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	var opts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
	svc := reasoning.NewAnthropicService(client, cfg.Anthropic)

	zap.L().Info("pipeline ready",
		zap.String("mode", mode),
		zap.String("store", cfg.Store.Driver),
		zap.String("model", cfg.Anthropic.Model),
		zap.String("vertical", cfg.Import.BusinessVertical),
		zap.String("ocr", cfg.OCR.Provider),
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, svc, text),
	}, nil
}
