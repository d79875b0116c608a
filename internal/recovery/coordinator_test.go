package recovery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codemend/internal/config"
	"codemend/internal/diagnose"
	"codemend/internal/registry"
	"codemend/internal/strategy"
	"codemend/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func testCoordinator(chain []strategy.RepairStrategy) *Coordinator {
	return NewCoordinator(chain, nil, registry.New("", nil), nil, config.Default().Recovery)
}

func deterministicChain() []strategy.RepairStrategy {
	return strategy.DefaultChain(registry.New("", nil), "recipe-app", nil, nil)
}

const brokenFeedView = `import SwiftUI

struct FeedView: View {
    var body: some View {
        Chart {
            BarMark(x: .value("day", 1), y: .value("count", 2))
`

func TestRecoverTwoStrategyPasses(t *testing.T) {
	// An unresolved identifier plus a brace mismatch: the dependency
	// strategy clears the first, the syntax strategy the second, and
	// the accepted order is exactly dependency then syntax.
	c := testCoordinator(deterministicChain())
	session := NewSession("recipe-app")

	files := []types.SourceFile{{Path: "FeedView.swift", Content: brokenFeedView}}
	diags := []string{
		"FeedView.swift:5:9: error: cannot find 'Chart' in scope",
		"FeedView.swift:7:1: error: expected '}' at end of brace statement",
	}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, outcome.Status)
	require.Equal(t, []string{"dependency", "syntax"}, outcome.StrategiesApplied)
	require.Equal(t, StateSucceeded, session.State())
	require.Empty(t, outcome.Remaining)

	fixed := outcome.Files[0].Content
	require.Contains(t, fixed, "import Charts")
	require.Equal(t, strings.Count(fixed, "{"), strings.Count(fixed, "}"))

	for _, a := range session.Attempts() {
		require.Equal(t, []string{"FeedView.swift"}, a.FilesTouched)
	}
}

func TestRecoverEmptyDiagnosticsSucceedsImmediately(t *testing.T) {
	c := testCoordinator(deterministicChain())
	session := NewSession("app")
	files := []types.SourceFile{{Path: "A.swift", Content: "struct A {}\n"}}

	outcome, err := c.Recover(context.Background(), session, nil, files)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, outcome.Status)
	require.Empty(t, outcome.StrategiesApplied)
	require.Empty(t, session.Attempts())
	require.Equal(t, diagnose.EmptyFingerprint, outcome.Fingerprint)
}

func TestRecoverAttemptCapStopsTheChain(t *testing.T) {
	cfg := config.Default().Recovery
	cfg.AttemptCap = 1
	c := NewCoordinator(deterministicChain(), nil, registry.New("", nil), nil, cfg)
	session := NewSession("recipe-app")

	files := []types.SourceFile{{Path: "FeedView.swift", Content: brokenFeedView}}
	diags := []string{
		"FeedView.swift:5:9: error: cannot find 'Chart' in scope",
		"FeedView.swift:7:1: error: expected '}' at end of brace statement",
	}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, outcome.Status)
	require.Equal(t, []string{"dependency"}, outcome.StrategiesApplied)
	require.Len(t, session.Attempts(), 1)
	require.Len(t, outcome.Remaining, 1)
	require.Equal(t, diagnose.CategoryBraceMismatch, outcome.Remaining[0].Category)
}

func TestRecoverSkipsTriedFingerprintStrategyPairs(t *testing.T) {
	// No strategy can clear this diagnostic; the first call records the
	// failed attempts, the second call must not repeat them.
	c := testCoordinator(deterministicChain())
	session := NewSession("app")

	files := []types.SourceFile{{Path: "Plain.swift", Content: "let x = 1\n"}}
	diags := []string{
		"Plain.swift:1:5: error: cannot find 'Mystery' in scope",
	}

	first, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, first.Status)
	tried := len(session.Attempts())
	require.Greater(t, tried, 0)

	second, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, second.Status)
	require.Len(t, session.Attempts(), tried, "retry against the same fingerprint must not re-run strategies")
}

// regressingStrategy claims every category and returns a tree that
// drops a file, which the verifier must reject.
type regressingStrategy struct{}

func (regressingStrategy) Name() string     { return "regressor" }
func (regressingStrategy) Suspending() bool { return false }
func (regressingStrategy) Handles() map[diagnose.Category]bool {
	h := make(map[diagnose.Category]bool)
	for _, c := range diagnose.AllCategories() {
		h[c] = true
	}
	return h
}
func (regressingStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (strategy.Result, error) {
	return strategy.Result{Changed: true, Files: files[:1]}, nil
}

func TestRecoverRejectionKeepsOriginalFiles(t *testing.T) {
	c := testCoordinator([]strategy.RepairStrategy{regressingStrategy{}})
	session := NewSession("app")

	files := []types.SourceFile{
		{Path: "A.swift", Content: "struct A {}\n"},
		{Path: "B.swift", Content: "struct B {}\n"},
	}
	diags := []string{"A.swift:1:1: error: cannot find 'X' in scope"}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, outcome.Status)
	require.False(t, types.TreeChanged(files, outcome.Files),
		"rejected strategy output must not leak into the working tree")

	attempts := session.Attempts()
	require.Len(t, attempts, 1)
	require.False(t, attempts[0].Accepted)
	require.NotEmpty(t, attempts[0].Issues)
}

// addingStrategy claims every category and returns the input tree plus
// one extra file.
type addingStrategy struct {
	path    string
	content string
}

func (a addingStrategy) Name() string                        { return "adding" }
func (a addingStrategy) Suspending() bool                    { return false }
func (a addingStrategy) Handles() map[diagnose.Category]bool { return regressingStrategy{}.Handles() }
func (a addingStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (strategy.Result, error) {
	out := append(types.CloneTree(files), types.SourceFile{Path: a.path, Content: a.content})
	return strategy.Result{Changed: true, Files: out}, nil
}

func TestRecoverAcceptedOutputKeepsOriginalPaths(t *testing.T) {
	// A proposed new file whose basename collides with an original must
	// update the original in place, never displace it: every accepted
	// tree keeps every original path.
	c := testCoordinator([]strategy.RepairStrategy{addingStrategy{
		path:    "App/ContentView.swift",
		content: "struct ContentView {\n    var fixed = true\n}\n",
	}})
	session := NewSession("app")

	files := []types.SourceFile{{Path: "ContentView.swift", Content: "struct ContentView {}\n"}}
	diags := []string{"ContentView.swift:1:1: error: cannot find 'X' in scope"}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, outcome.Status)

	paths := types.Paths(outcome.Files)
	require.Contains(t, paths, "ContentView.swift",
		"original path dropped from accepted tree; got %v", paths)
	require.NotContains(t, paths, "App/ContentView.swift")

	idx := types.IndexByPath(outcome.Files)
	require.Contains(t, outcome.Files[idx["ContentView.swift"]].Content, "var fixed = true",
		"proposed content must land in the existing file")

	attempts := session.Attempts()
	require.Len(t, attempts, 1)
	require.Equal(t, []string{"ContentView.swift"}, attempts[0].FilesTouched)
}

// touchingStrategy claims every category and appends a line to the
// named file.
type touchingStrategy struct{ path string }

func (s touchingStrategy) Name() string                        { return "touching" }
func (s touchingStrategy) Suspending() bool                    { return false }
func (s touchingStrategy) Handles() map[diagnose.Category]bool { return regressingStrategy{}.Handles() }
func (s touchingStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (strategy.Result, error) {
	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	out[idx[s.path]].Content += "let touched = true\n"
	return strategy.Result{Changed: true, Files: out}, nil
}

func TestRecoverRejectsDedupeDroppingOriginal(t *testing.T) {
	// The input tree already duplicates a basename. Resolving that would
	// delete an original path, which an accepted fix is never allowed to
	// do, so the attempt is rejected and the tree stays as it was.
	c := testCoordinator([]strategy.RepairStrategy{touchingStrategy{path: "Sources/App/ContentView.swift"}})
	session := NewSession("app")

	files := []types.SourceFile{
		{Path: "ContentView.swift", Content: "struct ContentView {}\n"},
		{Path: "Sources/App/ContentView.swift", Content: "struct ContentView {}\n"},
	}
	diags := []string{"ContentView.swift:1:1: error: cannot find 'X' in scope"}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, outcome.Status)
	require.False(t, types.TreeChanged(files, outcome.Files))

	attempts := session.Attempts()
	require.Len(t, attempts, 1)
	require.False(t, attempts[0].Accepted)
	require.Contains(t, attempts[0].Note, "deduplication")
}

// erroringStrategy fails outright; the coordinator must treat that as
// a rejection and move on.
type erroringStrategy struct{}

func (erroringStrategy) Name() string     { return "erroring" }
func (erroringStrategy) Suspending() bool { return true }
func (erroringStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{diagnose.CategoryUnresolvedIdentifier: true}
}
func (erroringStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (strategy.Result, error) {
	return strategy.Result{}, errors.New("backend unavailable")
}

func TestRecoverStrategyErrorIsARejection(t *testing.T) {
	chain := append([]strategy.RepairStrategy{erroringStrategy{}}, deterministicChain()...)
	c := testCoordinator(chain)
	session := NewSession("recipe-app")

	files := []types.SourceFile{{Path: "FeedView.swift", Content: brokenFeedView}}
	diags := []string{"FeedView.swift:5:9: error: cannot find 'Chart' in scope"}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err, "a failing strategy must not fail the whole call")
	require.Equal(t, StatusSucceeded, outcome.Status)
	require.Equal(t, []string{"dependency"}, outcome.StrategiesApplied)

	attempts := session.Attempts()
	require.Equal(t, "erroring", attempts[0].Strategy)
	require.False(t, attempts[0].Accepted)
	require.Contains(t, attempts[0].Note, "backend unavailable")
}

func TestRecoverLearnsMappingsAfterAcceptance(t *testing.T) {
	reg := registry.New("", nil)
	reg.ObserveSuccess("recipe-app", "ErrorView", "AppErrorView")
	chain := strategy.DefaultChain(reg, "recipe-app", nil, nil)
	c := NewCoordinator(chain, nil, reg, nil, config.Default().Recovery)
	session := NewSession("recipe-app")

	files := []types.SourceFile{{
		Path:    "ContentView.swift",
		Content: "import SwiftUI\n\nstruct ContentView: View {\n    var body: some View { ErrorView(message: \"boom\") }\n}\n",
	}}
	diags := []string{"ContentView.swift:4:27: error: cannot find 'ErrorView' in scope"}

	outcome, err := c.Recover(context.Background(), session, diags, files)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, outcome.Status)
	require.Contains(t, outcome.StrategiesApplied, "identifier")

	actual, ok := reg.Resolve("recipe-app", "ErrorView")
	require.True(t, ok)
	require.Equal(t, "AppErrorView", actual)
	found := false
	for _, m := range reg.Mappings("recipe-app") {
		if m.Expected == "ErrorView" {
			found = true
			require.GreaterOrEqual(t, m.Hits, 2, "acceptance must reinforce the mapping")
		}
	}
	require.True(t, found)
}

func TestDetectOscillation(t *testing.T) {
	mk := func(fp string, accepted bool) FixAttempt {
		return FixAttempt{Strategy: "s", Fingerprint: fp, Accepted: accepted}
	}

	require.False(t, detectOscillation(nil, 6))
	require.False(t, detectOscillation([]FixAttempt{mk("a", true), mk("b", true)}, 6))
	require.False(t, detectOscillation([]FixAttempt{mk("a", false), mk("a", false)}, 6))
	require.True(t, detectOscillation([]FixAttempt{mk("a", true), mk("b", false), mk("a", true)}, 6))

	// Outside the window the repeat is invisible.
	trail := []FixAttempt{mk("a", true), mk("b", true), mk("c", true), mk("a", true)}
	require.False(t, detectOscillation(trail, 3))
	require.True(t, detectOscillation(trail, 4))
}

func TestWriteTrail(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTrail(&buf, []FixAttempt{
		{
			Strategy:     "syntax",
			Fingerprint:  "fp",
			Accepted:     true,
			Note:         "balanced braces",
			FilesTouched: []string{"FeedView.swift"},
		},
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"strategy": "syntax"`)
	require.Contains(t, buf.String(), `"accepted": true`)
	require.Contains(t, buf.String(), `"files_touched"`)
	require.Contains(t, buf.String(), `"FeedView.swift"`)
}
