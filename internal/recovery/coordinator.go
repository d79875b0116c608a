// Package recovery runs the ordered repair chain against a failing
// source tree. The coordinator owns the accept/reject decision for
// every strategy's output, the loop-prevention bookkeeping (error-set
// fingerprints, tried pairs, oscillation detection), and the
// write-after-verify learning hooks into the identifier registry and
// the fix-pattern store.
package recovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"codemend/internal/config"
	"codemend/internal/dedupe"
	"codemend/internal/diagnose"
	"codemend/internal/knowledge"
	"codemend/internal/logging"
	"codemend/internal/registry"
	"codemend/internal/strategy"
	"codemend/internal/types"
	"codemend/internal/verify"
)

// Status is a recovery call's terminal result.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusExhausted Status = "EXHAUSTED"
)

// Outcome is the result of one Recover call.
type Outcome struct {
	Status Status

	// Files is the repaired tree on success, or the furthest-repaired
	// tree when exhausted. Never nil.
	Files []types.SourceFile

	// StrategiesApplied lists the accepted strategies of this call, in
	// application order.
	StrategiesApplied []string

	// Fingerprint identifies the error set the call started from.
	Fingerprint string

	// Remaining holds the diagnostics no strategy could clear. Empty on
	// success.
	Remaining []diagnose.Diagnostic

	// Attempts is the session's full fix-attempt trail, including
	// earlier calls.
	Attempts []FixAttempt
}

// Coordinator drives the repair chain. One coordinator serves many
// sessions; all per-effort state lives in the Session.
type Coordinator struct {
	chain   []strategy.RepairStrategy
	verif   *verify.Verifier
	deduper *dedupe.Deduper
	reg     *registry.Registry
	store   *knowledge.Store

	attemptCap        int
	strategyTimeout   time.Duration
	oscillationWindow int
}

// NewCoordinator wires a coordinator from its collaborators. reg and
// store may be nil; the matching learning hook is then skipped.
func NewCoordinator(chain []strategy.RepairStrategy, deduper *dedupe.Deduper,
	reg *registry.Registry, store *knowledge.Store, cfg config.RecoveryConfig) *Coordinator {
	if deduper == nil {
		deduper = dedupe.New(nil)
	}
	return &Coordinator{
		chain:             chain,
		verif:             verify.New(),
		deduper:           deduper,
		reg:               reg,
		store:             store,
		attemptCap:        cfg.AttemptCap,
		strategyTimeout:   config.ParseTimeout(cfg.StrategyTimeout, 90*time.Second),
		oscillationWindow: cfg.OscillationWindow,
	}
}

// Recover classifies the raw diagnostics and walks the chain in
// priority order. Each strategy runs against the diagnostics it
// declares; an accepted fix replaces the working tree and retires the
// handled diagnostics, a rejected one leaves the tree exactly as it
// was. The call ends when no diagnostics remain, when the chain is out
// of applicable strategies, or when the session's attempt cap or an
// oscillation trips.
//
// Strategy results are accepted only when the tree actually changed,
// the verifier found no regression, and deduplication left no
// unresolved duplicate. Registry and knowledge writes happen strictly
// after acceptance.
func (c *Coordinator) Recover(ctx context.Context, session *Session, rawDiags []string, files []types.SourceFile) (*Outcome, error) {
	if session == nil {
		return nil, fmt.Errorf("recover requires a session")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diags := diagnose.Classify(rawDiags)
	fp := diagnose.Fingerprint(diags)

	session.setState(StateRunning)
	logging.Recover("session %s: %d diagnostics, fingerprint %s", session.ID, len(diags), fp)

	if len(diags) == 0 {
		session.setState(StateSucceeded)
		return &Outcome{
			Status:      StatusSucceeded,
			Files:       files,
			Fingerprint: fp,
			Attempts:    session.Attempts(),
		}, nil
	}

	outcome := &Outcome{Fingerprint: fp}
	current := files
	remaining := diags

	for _, s := range c.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(remaining) == 0 {
			break
		}

		active := matching(remaining, s.Handles())
		if len(active) == 0 {
			continue
		}
		stepFP := diagnose.Fingerprint(remaining)
		if session.triedAlready(stepFP, s.Name()) {
			logging.RecoverDebug("session %s: skipping %s, already tried against %s",
				session.ID, s.Name(), stepFP)
			continue
		}
		if session.attemptCount() >= c.attemptCap {
			logging.Recover("session %s: attempt cap %d reached", session.ID, c.attemptCap)
			break
		}
		if detectOscillation(session.Attempts(), c.oscillationWindow) {
			logging.Recover("session %s: oscillation detected, stopping early", session.ID)
			break
		}

		session.markTried(stepFP, s.Name())
		accepted, candidate, attempt := c.runStrategy(ctx, s, session.AppType, current, active, stepFP)
		session.record(attempt)

		if !accepted {
			continue
		}

		current = candidate
		session.recordApplied(s.Name())
		outcome.StrategiesApplied = append(outcome.StrategiesApplied, s.Name())
		remaining = withoutCategories(remaining, s.Handles())
	}

	outcome.Files = current
	outcome.Remaining = remaining
	outcome.Attempts = session.Attempts()
	if len(remaining) == 0 {
		outcome.Status = StatusSucceeded
		session.setState(StateSucceeded)
		logging.Recover("session %s: recovered, applied %v", session.ID, outcome.StrategiesApplied)
	} else {
		outcome.Status = StatusExhausted
		session.setState(StateExhausted)
		logging.Recover("session %s: exhausted with %d diagnostics remaining",
			session.ID, len(remaining))
	}
	return outcome, nil
}

// runStrategy invokes one strategy and applies the acceptance
// contract. It returns the candidate tree only on acceptance; on any
// rejection the caller keeps the original files.
func (c *Coordinator) runStrategy(ctx context.Context, s strategy.RepairStrategy, appType string,
	files []types.SourceFile, active []diagnose.Diagnostic, fp string) (bool, []types.SourceFile, FixAttempt) {

	attempt := FixAttempt{
		Strategy:    s.Name(),
		Fingerprint: fp,
		StartedAt:   time.Now(),
	}
	defer func() { attempt.Duration = time.Since(attempt.StartedAt) }()

	callCtx := ctx
	if s.Suspending() {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.strategyTimeout)
		defer cancel()
	}

	result, err := s.Apply(callCtx, files, active)
	if err != nil {
		attempt.Note = fmt.Sprintf("rejected: %v", err)
		logging.Strategy("%s rejected: %v", s.Name(), err)
		return false, nil, attempt
	}
	if !result.Changed {
		attempt.Note = "no change produced"
		return false, nil, attempt
	}

	// Fold proposed new files into the tree before judging it: a new
	// path whose basename already exists updates the existing file in
	// place instead of landing beside it, so a later dedupe pass can
	// never be the thing that drops an original path.
	merged := c.mergeProposed(files, result.Files)
	if !types.TreeChanged(files, merged) {
		attempt.Note = "no change produced"
		return false, nil, attempt
	}
	attempt.FilesTouched = touchedPaths(files, merged)

	generative := s.Name() == "generative"
	ok, issues := c.verif.CheckStrategyOutput(files, merged, generative)
	attempt.Issues = issues
	if !ok {
		attempt.Note = "rejected by verifier"
		logging.Strategy("%s rejected by verifier: %v", s.Name(), issues)
		return false, nil, attempt
	}

	deduped := c.deduper.Dedupe(merged)
	if dropped := droppedOriginals(deduped.Removed, files); len(dropped) > 0 {
		attempt.Note = "rejected: deduplication would drop original files"
		for _, p := range dropped {
			attempt.Issues = append(attempt.Issues,
				fmt.Sprintf("deduplication would drop original file: %s", p))
		}
		logging.Strategy("%s rejected: dedupe would drop originals %v", s.Name(), dropped)
		return false, nil, attempt
	}

	c.learn(ctx, appType, result)

	attempt.Accepted = true
	if len(result.Notes) > 0 {
		attempt.Note = result.Notes[0]
	}
	logging.Strategy("%s accepted (%d note(s), %d removed duplicate(s))",
		s.Name(), len(result.Notes), len(deduped.Removed))
	return true, deduped.Files, attempt
}

// learn runs the write-after-verify hooks for an accepted result.
func (c *Coordinator) learn(ctx context.Context, appType string, result strategy.Result) {
	if c.reg != nil {
		for _, m := range result.AppliedMappings {
			c.reg.ObserveSuccess(appType, m.Expected, m.Actual)
		}
	}
	if c.store != nil {
		for _, id := range result.PatternIDs {
			if err := c.store.RecordHit(ctx, id); err != nil {
				logging.Get(logging.CategoryKnowledge).Warn("failed to record pattern hit %d: %v", id, err)
			}
		}
	}
}

// mergeProposed folds strategy-proposed new files into the tree. A new
// path lands only when its basename is new; otherwise the existing
// file's content is updated in place and the proposed path discarded.
func (c *Coordinator) mergeProposed(original, candidate []types.SourceFile) []types.SourceFile {
	origIdx := types.IndexByPath(original)
	var kept, added []types.SourceFile
	for _, f := range candidate {
		if _, ok := origIdx[f.Path]; ok {
			kept = append(kept, f)
		} else {
			added = append(added, f)
		}
	}
	if len(added) == 0 {
		return candidate
	}
	return c.deduper.Merge(kept, added)
}

// touchedPaths lists the candidate paths whose content differs from the
// original, plus genuinely new paths. Sorted for stable trails.
func touchedPaths(original, candidate []types.SourceFile) []string {
	origIdx := types.IndexByPath(original)
	var out []string
	for _, f := range candidate {
		if i, ok := origIdx[f.Path]; ok {
			if original[i].Content != f.Content {
				out = append(out, f.Path)
			}
			continue
		}
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

// droppedOriginals reports which deduplicated-away paths existed in the
// original tree.
func droppedOriginals(removed []string, original []types.SourceFile) []string {
	origIdx := types.IndexByPath(original)
	var out []string
	for _, p := range removed {
		if _, ok := origIdx[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// matching filters diagnostics to the categories a strategy declares.
func matching(diags []diagnose.Diagnostic, handles map[diagnose.Category]bool) []diagnose.Diagnostic {
	var out []diagnose.Diagnostic
	for _, d := range diags {
		if handles[d.Category] {
			out = append(out, d)
		}
	}
	return out
}

// withoutCategories drops the diagnostics an accepted strategy handled.
func withoutCategories(diags []diagnose.Diagnostic, handled map[diagnose.Category]bool) []diagnose.Diagnostic {
	var out []diagnose.Diagnostic
	for _, d := range diags {
		if !handled[d.Category] {
			out = append(out, d)
		}
	}
	return out
}
