package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/store"
	"github.com/sells-group/leadmap/pkg/postgrest"
)

// leadWriter is the write side of a lead backend. Both store.Store and
// leadsource.RESTSource satisfy it.
type leadWriter interface {
	UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
	DeleteLeads(ctx context.Context, ids []string) (int64, error)
}

// env holds the backends a command works against.
type env struct {
	Source  leadsource.Source
	Writer  leadWriter
	Store   store.Store // nil for the postgrest driver
	Fetcher *leadsource.Fetcher
}

// Close releases the store connection, if any.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the run-log capable store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("store driver %q keeps no run log (use postgres or sqlite)", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// initEnv wires the configured lead backend and a fetcher over it.
func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	e := &env{}
	if cfg.Store.Driver == "postgrest" {
		rs := leadsource.NewRESTSource(postgrest.NewClient(cfg.PostgREST.URL, cfg.PostgREST.Key), cfg.PostgREST.Table)
		e.Source, e.Writer = rs, rs
	} else {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		e.Source, e.Writer, e.Store = st, st, st
	}

	e.Fetcher = leadsource.NewFetcher(e.Source, leadsource.Options{
		PageSize:   cfg.Ingest.PageSize,
		Timeout:    time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
		RetryCount: cfg.Ingest.RetryCount,
		RateLimit:  cfg.Ingest.RateLimit,
	})
	return e, nil
}

// analysisOptions builds and validates the analysis options from config.
// Commands call it before opening the store so a bad taxonomy or threshold
// fails without touching the database.
func analysisOptions() (analysis.Options, error) {
	opts, err := analysis.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return analysis.Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return analysis.Options{}, err
	}
	return opts, nil
}

// Engine builds an analysis engine over the env's fetcher. Runs are
// recorded when the backend keeps a run log.
func (e *env) Engine(opts analysis.Options) (*analysis.Engine, error) {
	var rec analysis.RunRecorder
	if e.Store != nil {
		rec = e.Store
	}
	return analysis.NewEngine(e.Fetcher, opts, rec)
}

// runAnalysis is the common body of the report commands.
func runAnalysis(ctx context.Context, req analysis.Request) (*analysis.Report, analysis.Options, error) {
	opts, err := analysisOptions()
	if err != nil {
		return nil, analysis.Options{}, err
	}

	e, err := initEnv(ctx)
	if err != nil {
		return nil, analysis.Options{}, err
	}
	defer e.Close()

	engine, err := e.Engine(opts)
	if err != nil {
		return nil, analysis.Options{}, err
	}
	report, err := engine.Run(ctx, req)
	if err != nil {
		return nil, analysis.Options{}, err
	}
	return report, engine.Options(), nil
}
