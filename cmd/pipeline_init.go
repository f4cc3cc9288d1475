package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/generate"
	"github.com/humtech/outreach-cli/internal/pipeline"
	"github.com/humtech/outreach-cli/internal/store"
	"github.com/humtech/outreach-cli/internal/truth"
	anthropicpkg "github.com/humtech/outreach-cli/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline needed by the
// run/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
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
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initTruth builds the validator, loading a custom denylist when one is
// configured. A nil denylist falls back to the built-in one.
func initTruth() (*truth.Validator, error) {
	if cfg.Truth.DenylistPath == "" {
		return truth.New(nil), nil
	}
	dl, err := truth.LoadDenylist(cfg.Truth.DenylistPath)
	if err != nil {
		return nil, eris.Wrap(err, "load denylist")
	}
	zap.L().Info("denylist loaded", zap.String("path", cfg.Truth.DenylistPath))
	return truth.New(dl), nil
}

// initPipeline sets up the store, the Claude client, and the validator,
// and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithRateLimit(cfg.Anthropic.RatePerSecond, cfg.Anthropic.RateBurst),
	)

	validator, err := initTruth()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p := pipeline.New(st, generate.NewAdapter(client), validator, cfg.Pipeline)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
	}, nil
}
