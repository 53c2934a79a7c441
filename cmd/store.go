package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/research"
	"github.com/sells-group/promo-scout/internal/store"
	"github.com/sells-group/promo-scout/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "promo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCompleter() (anthropic.Completer, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (PROMO_ANTHROPIC_KEY)")
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	return anthropic.NewCompleter(client, anthropic.CompleterConfig{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		MaxAttempts:       cfg.Anthropic.MaxAttempts,
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
	}), nil
}

// initEngine opens the store, runs migrations, and wires the research engine.
// The caller owns closing the returned store.
func initEngine(ctx context.Context) (*research.Engine, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	ai, err := initCompleter()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	return research.NewEngine(st, ai), st, nil
}
