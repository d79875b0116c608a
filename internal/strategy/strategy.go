// Package strategy implements the ordered repair strategies the
// coordinator runs against a failing source tree. Every strategy is a
// RepairStrategy: it declares the diagnostic categories it can handle
// and returns either a complete replacement tree or the input
// untouched. Deterministic strategies never suspend; the knowledge and
// generative strategies may perform external calls and honor context
// cancellation.
package strategy

import (
	"context"

	"codemend/internal/diagnose"
	"codemend/internal/types"
)

// AppliedMapping records one expected -> actual rewrite a strategy
// performed, so the coordinator can reinforce the registry after the
// fix is verified. Mappings are never written speculatively.
type AppliedMapping struct {
	Expected string
	Actual   string
}

// Result is a strategy's output.
type Result struct {
	Changed bool
	Files   []types.SourceFile

	// Notes describe the edits for the fix-attempt log.
	Notes []string

	// AppliedMappings lists identifier rewrites pending verification.
	AppliedMappings []AppliedMapping

	// PatternIDs lists knowledge-store patterns pending a hit record.
	PatternIDs []int64
}

// unchanged is the canonical "did nothing" result.
func unchanged(files []types.SourceFile) Result {
	return Result{Changed: false, Files: files}
}

// RepairStrategy is one link of the repair chain.
type RepairStrategy interface {
	// Name identifies the strategy in fix-attempt logs and results.
	Name() string

	// Handles declares the diagnostic categories this strategy can act
	// on. The coordinator skips the strategy entirely when no current
	// diagnostic matches.
	Handles() map[diagnose.Category]bool

	// Suspending reports whether Apply may block on external I/O. The
	// coordinator wraps suspending calls in a timeout and treats
	// expiry as a rejection, never a fatal error.
	Suspending() bool

	// Apply attempts a repair. It must return the complete tree: the
	// input files unchanged on a no-op, or a full replacement. Partial
	// trees are a contract violation.
	Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error)
}
