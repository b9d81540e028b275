package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safeops-labs/lawsuggest/internal/feedback"
	"github.com/safeops-labs/lawsuggest/internal/lawindex"
	"github.com/safeops-labs/lawsuggest/internal/ruleset"
	"github.com/safeops-labs/lawsuggest/internal/suggest"
	"github.com/safeops-labs/lawsuggest/pkg/anthropic"
)

// env bundles the wired components commands run against.
type env struct {
	Index    lawindex.Index
	Rules    *ruleset.Provider
	Service  *suggest.Service
	Feedback *feedback.Store
	Keywords *suggest.KeywordExtractor

	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// initEnv opens the law index for the configured driver, runs migrations,
// loads the ruleset, and wires the suggestion service. Feedback storage is
// always SQLite-backed at store.path, shared with the index when the driver
// is sqlite.
func initEnv(ctx context.Context) (*env, error) {
	e := &env{}

	switch cfg.Store.Driver {
	case "postgres":
		idx, err := lawindex.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init: open postgres index")
		}
		e.Index = idx
		e.closers = append(e.closers, idx.Close)
	case "sqlite", "":
		idx, err := lawindex.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, eris.Wrap(err, "init: open sqlite index")
		}
		e.Index = idx
		e.closers = append(e.closers, idx.Close)
	default:
		return nil, eris.Errorf("init: unknown store driver %q", cfg.Store.Driver)
	}

	if err := e.Index.Migrate(ctx); err != nil {
		e.Close()
		return nil, err
	}

	if sq, ok := e.Index.(*lawindex.SQLiteIndex); ok {
		e.Feedback = feedback.NewStore(sq.DB())
	} else {
		fdb, err := lawindex.NewSQLite(cfg.Store.Path)
		if err != nil {
			e.Close()
			return nil, eris.Wrap(err, "init: open feedback store")
		}
		e.Feedback = feedback.NewStore(fdb.DB())
		e.closers = append(e.closers, fdb.Close)
	}
	if err := e.Feedback.Migrate(ctx); err != nil {
		e.Close()
		return nil, err
	}

	rules, err := ruleset.NewProvider(cfg.Ruleset.Path)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Rules = rules

	e.Service = suggest.NewService(e.Index, e.Rules).WithParallelism(cfg.Suggest.Parallelism)

	var ai anthropic.Client
	if cfg.Anthropic.Key != "" {
		ai = anthropic.NewClient(cfg.Anthropic.Key)
	}
	e.Keywords = suggest.NewKeywordExtractor(ai, cfg.Anthropic.Model)

	version, _ := e.Service.RulesetVersion()
	zap.L().Info("environment ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("ruleset_version", version),
	)
	return e, nil
}
