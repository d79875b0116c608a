package strategy

import (
	"context"
	"fmt"
	"strings"

	"codemend/internal/diagnose"
	"codemend/internal/logging"
	"codemend/internal/types"
)

// SyntaxStrategy balances mismatched block delimiters at file end. It
// is conservative: when a safe rebalance is not possible the file is
// left untouched and the strategy reports no change.
type SyntaxStrategy struct{}

// NewSyntax creates the syntax strategy.
func NewSyntax() *SyntaxStrategy {
	return &SyntaxStrategy{}
}

func (s *SyntaxStrategy) Name() string { return "syntax" }

func (s *SyntaxStrategy) Suspending() bool { return false }

func (s *SyntaxStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryBraceMismatch: true,
	}
}

// Apply rebalances braces in every file named by a brace diagnostic.
func (s *SyntaxStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	result := Result{Files: out}

	seen := make(map[string]bool)
	for _, d := range diags {
		if d.Category != diagnose.CategoryBraceMismatch || d.File == "" || seen[d.File] {
			continue
		}
		seen[d.File] = true
		i, ok := idx[d.File]
		if !ok {
			continue
		}

		balanced, note := rebalanceBraces(out[i].Content)
		if note == "" {
			continue
		}
		out[i].Content = balanced
		result.Changed = true
		result.Notes = append(result.Notes, fmt.Sprintf("%s: %s", d.File, note))
		logging.StrategyDebug("syntax: %s (%s)", d.File, note)
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	return result, nil
}

// rebalanceBraces appends missing closers at file end when opens exceed
// closes, or strips surplus trailing closer lines when closes exceed
// opens. Returns the content unchanged with an empty note when neither
// fix can be applied safely.
func rebalanceBraces(content string) (string, string) {
	open := strings.Count(content, "{")
	closed := strings.Count(content, "}")

	switch {
	case open == closed:
		return content, ""

	case open > closed:
		missing := open - closed
		trimmed := strings.TrimRight(content, "\n")
		var b strings.Builder
		b.WriteString(trimmed)
		for i := 0; i < missing; i++ {
			b.WriteString("\n}")
		}
		b.WriteString("\n")
		return b.String(), fmt.Sprintf("appended %d closing brace(s)", missing)

	default:
		// Only strip closers that sit alone on trailing lines; a
		// surplus closer in the middle of the file needs a smarter fix
		// than this strategy is allowed to attempt.
		surplus := closed - open
		lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
		removed := 0
		for removed < surplus && len(lines) > 0 {
			last := strings.TrimSpace(lines[len(lines)-1])
			if last != "}" {
				break
			}
			lines = lines[:len(lines)-1]
			removed++
		}
		if removed < surplus {
			return content, ""
		}
		return strings.Join(lines, "\n") + "\n", fmt.Sprintf("removed %d surplus closing brace(s)", removed)
	}
}
