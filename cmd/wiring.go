// -- cmd/wiring.go --
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/courier-cli/internal/batch"
	"github.com/xkilldash9x/courier-cli/internal/browser"
	"github.com/xkilldash9x/courier-cli/internal/config"
	"github.com/xkilldash9x/courier-cli/internal/content"
	"github.com/xkilldash9x/courier-cli/internal/llmclient"
	"github.com/xkilldash9x/courier-cli/internal/outreach"
	"github.com/xkilldash9x/courier-cli/internal/results"
	"github.com/xkilldash9x/courier-cli/internal/selector"
	"github.com/xkilldash9x/courier-cli/internal/store"
)

// engine bundles everything a command needs to drive prospects: the live
// browser session, the batch coordinator wired to it, and the cleanup hooks
// for the store and generation client.
type engine struct {
	manager     *browser.Manager
	session     *browser.Session
	coordinator *batch.Coordinator
	writer      *results.Writer

	closeStore func()
	closeLLM   func() error
}

// buildEngine assembles the full outreach stack from the resolved config.
// Construction order matters: the selector registry is validated before the
// browser launches, so a misconfigured registry never costs a session.
func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	registry, err := selector.Load(cfg.Selectors.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("loading selector registry: %w", err)
	}
	if err := registry.EnsureRoles(outreach.RequiredRoles()...); err != nil {
		return nil, err
	}

	writer, err := results.NewWriter(cfg.Data.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("preparing artifact directory: %w", err)
	}

	e := &engine{}

	// The generation client is optional: without an API key the content
	// pipeline composes from templates alone.
	var llm *content.Pipeline
	if cfg.LLM.APIKey != "" {
		client, err := llmclient.New(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("building generation client: %w", err)
		}
		e.closeLLM = client.Close
		llm = content.NewPipeline(client, cfg.Content, cfg.LLM, logger, nil)
	} else {
		logger.Warn("No LLM API key configured, composing every note from templates.")
		llm = content.NewPipeline(nil, cfg.Content, cfg.LLM, logger, nil)
	}

	// The history store is best-effort: a missing or unreachable database
	// logs a warning and the run proceeds on file artifacts alone.
	var history *store.Store
	if cfg.Database.URL != "" {
		st, cleanup, err := store.Connect(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Warn("History store unavailable, continuing without it.", zap.Error(err))
		} else {
			history = st
			e.closeStore = cleanup
		}
	}

	e.manager = browser.NewManager(cfg.Browser, logger)
	session, err := e.manager.Start(ctx)
	if err != nil {
		e.Shutdown(ctx)
		return nil, fmt.Errorf("starting browser session: %w", err)
	}
	e.session = session
	session.SetFeedURL(cfg.Outreach.FeedURL)

	signedIn, err := session.SignedIn(ctx)
	if err != nil {
		e.Shutdown(ctx)
		return nil, fmt.Errorf("checking session authentication: %w", err)
	}
	if !signedIn {
		e.Shutdown(ctx)
		return nil, fmt.Errorf("session is signed out: re-export cookies from an authenticated browser to %s", cfg.Browser.CookiesFile)
	}

	resolver, err := selector.NewResolver(registry, session, logger)
	if err != nil {
		e.Shutdown(ctx)
		return nil, err
	}

	health := outreach.NewSessionHealth()
	machine, err := outreach.NewMachine(session, resolver, llm, health, outreach.MachineConfig{
		RateLimitIndicators: cfg.Outreach.RateLimitIndicators,
		DryRun:              cfg.Outreach.DryRun,
		SendWithoutNote:     cfg.Outreach.SendWithoutNote,
	}, logger)
	if err != nil {
		e.Shutdown(ctx)
		return nil, err
	}

	hooks := batch.Hooks{
		Sink:      writer,
		Refresher: session,
		Sleep:     session.Idle,
	}
	if history != nil {
		hooks.Store = history
	}
	coordinator, err := batch.New(machine, health, cfg.Outreach, hooks, logger)
	if err != nil {
		e.Shutdown(ctx)
		return nil, err
	}

	e.coordinator = coordinator
	e.writer = writer
	return e, nil
}

// Shutdown releases the browser, the store pool, and the generation client.
// Safe to call on a partially built engine.
func (e *engine) Shutdown(ctx context.Context) {
	if e.manager != nil {
		e.manager.Shutdown(ctx)
	}
	if e.closeStore != nil {
		e.closeStore()
	}
	if e.closeLLM != nil {
		_ = e.closeLLM()
	}
}
