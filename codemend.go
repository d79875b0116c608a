// Package codemend repairs generated source trees that failed to
// compile. It classifies build diagnostics, runs an ordered chain of
// repair strategies against the tree, and verifies that every accepted
// fix produced a real, non-regressive diff. Identifier mappings and
// fix patterns that survive verification are learned for the next run.
package codemend

import (
	"context"
	"fmt"
	"time"

	"codemend/internal/config"
	"codemend/internal/dedupe"
	"codemend/internal/diagnose"
	"codemend/internal/knowledge"
	"codemend/internal/llm"
	"codemend/internal/logging"
	"codemend/internal/recovery"
	"codemend/internal/registry"
	"codemend/internal/strategy"
	"codemend/internal/types"
	"codemend/internal/verify"
)

// SourceFile re-exports the tree unit so callers need not import
// internal packages.
type SourceFile = types.SourceFile

// Outcome re-exports the recovery result.
type Outcome = recovery.Outcome

// Engine is the top-level entry point. One engine serves many recovery
// sessions concurrently, bounded by the configured session cap.
type Engine struct {
	cfg     *config.Config
	reg     *registry.Registry
	store   *knowledge.Store
	client  llm.Client
	manager *recovery.Manager
	verif   *verify.Verifier
	deduper *dedupe.Deduper
	watcher *registry.Watcher
}

// New builds an engine from configuration. A nil cfg uses defaults.
// The LLM client is only constructed when an API key is configured;
// without one the generative fallback is simply absent from the chain.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var seeds []registry.SeedGroup
	if cfg.Registry.SeedPath != "" {
		loaded, err := registry.LoadSeedGroups(cfg.Registry.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry seeds: %w", err)
		}
		seeds = loaded
	}
	reg := registry.New(cfg.Registry.SnapshotPath, seeds)
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}

	var watcher *registry.Watcher
	if cfg.Registry.WatchSnapshot {
		w, err := registry.Watch(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to watch registry snapshot: %w", err)
		}
		watcher = w
	}

	store, err := knowledge.Open(cfg.Knowledge.DatabasePath, cfg.Knowledge.MinScore)
	if err != nil {
		return nil, err
	}
	store.SetLookupTimeout(config.ParseTimeout(cfg.Knowledge.LookupTimeout, 10*time.Second))
	if cfg.Knowledge.SeedPath != "" {
		if err := store.LoadSeedFile(ctx, cfg.Knowledge.SeedPath); err != nil {
			store.Close()
			return nil, err
		}
	} else if err := store.SeedIfEmpty(ctx, knowledge.DefaultSeedPatterns()); err != nil {
		store.Close()
		return nil, err
	}

	var client llm.Client
	if cfg.LLM.APIKey != "" {
		client, err = llm.NewClientFromConfig(ctx, cfg.LLM)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	deduper := dedupe.New(cfg.Dedupe.PreferredRoots)
	factory := func(appType string) *recovery.Coordinator {
		chain := strategy.DefaultChain(reg, appType, store, client)
		return recovery.NewCoordinator(chain, deduper, reg, store, cfg.Recovery)
	}

	return &Engine{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		client:  client,
		manager: recovery.NewManagerWithFactory(factory, cfg.Recovery.MaxConcurrentSessions),
		verif:   verify.New(),
		deduper: deduper,
		watcher: watcher,
	}, nil
}

// Close releases the engine's persistent resources.
func (e *Engine) Close() error {
	var firstErr error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	logging.Close()
	return firstErr
}

// StartSession opens a recovery session for an app type and returns
// its ID. The app type scopes identifier learning; unrelated apps
// never see each other's mappings.
func (e *Engine) StartSession(appType string, declaredNames []string) string {
	if len(declaredNames) > 0 {
		e.reg.Register(appType, declaredNames)
	}
	return e.manager.StartSession(appType).ID
}

// CloseSession forgets a session and its fix-attempt trail.
func (e *Engine) CloseSession(sessionID string) {
	e.manager.CloseSession(sessionID)
}

// Recover runs one repair pass: classify the raw diagnostics, walk the
// strategy chain, and return the repaired (or furthest-repaired) tree
// with the trail of what was tried.
func (e *Engine) Recover(ctx context.Context, sessionID string, rawDiags []string, files []SourceFile) (*Outcome, error) {
	return e.manager.Recover(ctx, sessionID, rawDiags, files)
}

// Attempts returns a session's fix-attempt trail.
func (e *Engine) Attempts(sessionID string) ([]recovery.FixAttempt, error) {
	s, ok := e.manager.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", recovery.ErrUnknownSession, sessionID)
	}
	return s.Attempts(), nil
}

// VerifyModification reports whether a candidate tree is a real,
// non-regressive modification of the original for the given request.
func (e *Engine) VerifyModification(original, candidate []SourceFile, request string) *verify.Report {
	return e.verif.Verify(original, candidate, request)
}

// Dedupe collapses duplicate artifacts in a tree by basename.
func (e *Engine) Dedupe(files []SourceFile) dedupe.Result {
	return e.deduper.Dedupe(files)
}

// ClassifyDiagnostics exposes the classifier for callers that only
// need categorized diagnostics, not a repair.
func ClassifyDiagnostics(raw []string) []diagnose.Diagnostic {
	return diagnose.Classify(raw)
}
