package strategy

import (
	"context"
	"fmt"
	"strings"

	"codemend/internal/diagnose"
	"codemend/internal/logging"
	"codemend/internal/types"
)

// CleanupStrategy is the cheapest link of the chain: line-local fixes
// for unterminated literals and stray statement separators. It only
// touches files named in a diagnostic it handles.
type CleanupStrategy struct{}

// NewCleanup creates the cleanup strategy.
func NewCleanup() *CleanupStrategy {
	return &CleanupStrategy{}
}

func (s *CleanupStrategy) Name() string { return "cleanup" }

func (s *CleanupStrategy) Suspending() bool { return false }

func (s *CleanupStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryUnterminatedLiteral: true,
	}
}

// Apply closes unterminated string literals on the diagnosed lines and
// strips stray separators in the same files.
func (s *CleanupStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	result := Result{Files: out}

	for _, d := range diags {
		if d.Category != diagnose.CategoryUnterminatedLiteral || d.File == "" {
			continue
		}
		i, ok := idx[d.File]
		if !ok {
			continue
		}

		fixed, notes := cleanFile(out[i].Content, d.Line)
		if fixed != out[i].Content {
			out[i].Content = fixed
			result.Changed = true
			for _, n := range notes {
				result.Notes = append(result.Notes, fmt.Sprintf("%s: %s", d.File, n))
			}
			logging.StrategyDebug("cleanup: fixed %s (%v)", d.File, notes)
		}
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	return result, nil
}

// cleanFile closes an odd-quoted literal on the diagnosed line and
// removes stray trailing separators throughout the file.
func cleanFile(content string, diagLine int) (string, []string) {
	lines := strings.Split(content, "\n")
	var notes []string

	if diagLine >= 1 && diagLine <= len(lines) {
		line := lines[diagLine-1]
		if hasUnterminatedLiteral(line) {
			lines[diagLine-1] = line + `"`
			notes = append(notes, fmt.Sprintf("closed string literal on line %d", diagLine))
		}
	}

	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		// A separator immediately before a closing delimiter, or at
		// line end after a call expression, is never meaningful.
		if strings.HasSuffix(trimmed, ";") {
			next := ""
			if i+1 < len(lines) {
				next = strings.TrimSpace(lines[i+1])
			}
			body := strings.TrimSuffix(trimmed, ";")
			endsCall := strings.HasSuffix(strings.TrimRight(body, " \t"), ")")
			beforeCloser := strings.HasPrefix(next, "}")
			if endsCall || beforeCloser {
				lines[i] = body
				notes = append(notes, fmt.Sprintf("removed stray separator on line %d", i+1))
			}
		}
	}

	return strings.Join(lines, "\n"), notes
}

// hasUnterminatedLiteral reports an odd count of unescaped double
// quotes on a line.
func hasUnterminatedLiteral(line string) bool {
	count := 0
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			count++
		}
	}
	return count%2 == 1
}
