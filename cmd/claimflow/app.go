package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/claimflow/internal/api"
	"github.com/ShayCichocki/claimflow/internal/config"
	"github.com/ShayCichocki/claimflow/internal/intake"
	"github.com/ShayCichocki/claimflow/internal/orchestrator"
	"github.com/ShayCichocki/claimflow/internal/retrieval"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/session"
	"github.com/ShayCichocki/claimflow/internal/state"
	"github.com/ShayCichocki/claimflow/internal/tools"
)

// appOptions selects the optional parts of an app.
type appOptions struct {
	// events creates an event emitter for the terminal chat.
	events bool
	// sequential runs each wave's tools one at a time.
	sequential bool
	// archive opens the session archive.
	archive bool
}

// app holds everything a command needs to run claims.
type app struct {
	store    *state.DB
	search   retrieval.Searcher
	rules    rules.Source
	emitter  *orchestrator.EventEmitter
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	// usage counts language model tokens; nil with the rule oracle.
	usage *api.TokenTracker

	closers []func() error
}

// openApp opens the stores named by cfg and builds the orchestrator. A
// policy index that cannot be opened leaves retrieval unavailable rather
// than failing, and so does a broken embedder.
func openApp(cfg *config.Config, o appOptions) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	src, watcher, err := loadRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	a.rules = src
	if watcher != nil {
		a.closers = append(a.closers, watcher.Close)
	}

	a.store, err = state.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)
	if err := a.store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	index, err := openIndex(cfg.Retrieval)
	if err != nil {
		slog.Warn("policy index unavailable", "path", cfg.Retrieval.Path, "error", err)
		a.search = retrieval.Unavailable{Cause: err}
	} else {
		a.search = index
		a.closers = append(a.closers, index.Close)
	}

	oracle, usage, err := newOracle(cfg, src)
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{orchestrator.WithMaxTurns(cfg.Intake.MaxTurns)}
	if o.sequential {
		opts = append(opts, orchestrator.WithSequential())
	}
	if o.events {
		a.emitter = orchestrator.NewEventEmitter(256)
		opts = append(opts, orchestrator.WithEmitter(a.emitter))
	}

	a.orch = orchestrator.New(orchestrator.Deps{
		Oracle: oracle,
		Tools: &tools.Dependencies{
			Rules:            src,
			Policies:         a.store,
			Search:           a.search,
			History:          a.store,
			HistoryLookback:  cfg.History.Lookback,
			HistoryThreshold: cfg.History.Threshold,
		},
		Recorder: a.store,
	}, opts...)

	var archiver session.Archiver
	if o.archive {
		archive, err := session.OpenArchive(cfg.Archive.Path)
		if err != nil {
			slog.Warn("session archive unavailable", "path", cfg.Archive.Path, "error", err)
		} else {
			archiver = archive
			a.closers = append(a.closers, archive.Close)
		}
	}
	a.usage = usage
	a.sessions = session.NewManager(a.orch, archiver, cfg.Session.TTL, cfg.Session.CleanupInterval)
	return a, nil
}

// Close releases everything in reverse order of opening.
func (a *app) Close() error {
	logUsage(slog.Default(), a.usage)
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.emitter != nil {
		a.emitter.Close()
	}
	return errors.Join(errs...)
}

func loadRules(rc config.RulesConfig) (rules.Source, *rules.Watcher, error) {
	if rc.Path == "" {
		return rules.Static{T: rules.Default()}, nil, nil
	}
	if rc.Watch {
		w, err := rules.NewWatcher(rc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("watch rules: %w", err)
		}
		return w, w, nil
	}
	t, err := rules.Load(rc.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}
	return rules.Static{T: t}, nil, nil
}

func openIndex(rc config.RetrievalConfig) (*retrieval.Store, error) {
	var opts []retrieval.Option
	embedder, err := retrieval.NewEmbedder(retrieval.EmbedConfig{
		Provider:     rc.EmbedProvider,
		Model:        rc.EmbedModel,
		OllamaHost:   rc.OllamaHost,
		OpenAIAPIKey: rc.OpenAIAPIKey,
	})
	switch {
	case err != nil:
		slog.Warn("embedder disabled, using keyword ranking only", "provider", rc.EmbedProvider, "error", err)
	case embedder != nil:
		opts = append(opts, retrieval.WithEmbedder(embedder))
	}
	return retrieval.Open(rc.Path, opts...)
}

// logUsage reports the tokens spent by the language model oracle.
func logUsage(logger *slog.Logger, t *api.TokenTracker) {
	if t == nil || t.Calls() == 0 {
		return
	}
	in, out := t.Total()
	logger.Info("language model usage", "calls", t.Calls(), "input_tokens", in, "output_tokens", out)
}

func newOracle(cfg *config.Config, src rules.Source) (orchestrator.Oracle, *api.TokenTracker, error) {
	if cfg.Intake.Oracle != config.OracleAnthropic {
		return intake.NewRuleOracle(src), nil, nil
	}

	cc := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cc.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("intake.oracle is %q: %w", config.OracleAnthropic, err)
		}
		cc.APIKey = key
	}
	client, err := api.NewClient(cc)
	if err != nil {
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}
	slog.Debug("using language model oracle", "model", client.Model(), "bedrock", cc.UseAWSBedrock)
	return api.NewOracle(api.NewRunner(client), src), client.Tracker(), nil
}
