package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/draftzen/internal/discovery"
	"github.com/sells-group/draftzen/internal/enrich"
	"github.com/sells-group/draftzen/internal/ledger"
	"github.com/sells-group/draftzen/internal/outline"
	"github.com/sells-group/draftzen/internal/store"
	"github.com/sells-group/draftzen/pkg/headings"
	"github.com/sells-group/draftzen/pkg/llm"
	"github.com/sells-group/draftzen/pkg/writerzen"
)

// appEnv bundles the wired subsystems for a command invocation.
type appEnv struct {
	Store    store.Store
	Ledger   ledger.Ledger
	Orch     *enrich.Orchestrator
	Promoter *discovery.Promoter
}

// initEnv builds stores, clients, and the orchestrator from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	var (
		st  store.Store
		led ledger.Ledger
		err error
	)

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.StorePool())
		if err != nil {
			return nil, err
		}
		led, err = ledger.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Credits.InitialGrant, &cfg.Store.Pool)
		if err != nil {
			st.Close()
			return nil, err
		}
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		led, err = ledger.NewSQLite(cfg.Store.DatabaseURL, cfg.Credits.InitialGrant)
		if err != nil {
			st.Close()
			return nil, err
		}
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	llmClient := llm.NewClient(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	docs := headings.NewClient(
		headings.WithPerHostRate(rate.Limit(cfg.Scrape.PerHostRPS), cfg.Scrape.PerHostBurst),
	)

	jobOpts := []writerzen.Option{}
	if cfg.WriterZen.BaseURL != "" {
		jobOpts = append(jobOpts, writerzen.WithBaseURL(cfg.WriterZen.BaseURL))
	}
	jobs := writerzen.NewClient(writerzen.Credentials{
		Cookie:    cfg.WriterZen.Cookie,
		XSRFToken: cfg.WriterZen.XSRFToken,
	}, jobOpts...)

	resolver := outline.NewResolver(llmClient, docs, outline.Config{
		MinHeadingRunes: cfg.Outline.MinHeadingRunes,
		MaxHeadingRunes: cfg.Outline.MaxHeadingRunes,
		CallTimeout:     time.Duration(cfg.Outline.CallTimeoutSecs) * time.Second,
	})

	orch := enrich.New(resolver, llmClient, jobs, st, led, cfg.Credits.Costs, cfg.WriterZen.PollBudgets())

	return &appEnv{
		Store:    st,
		Ledger:   led,
		Orch:     orch,
		Promoter: discovery.NewPromoter(cfg.Discovery.Competitors),
	}, nil
}

// Close releases store and ledger resources.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}
