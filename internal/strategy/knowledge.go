package strategy

import (
	"context"
	"fmt"
	"regexp"

	"codemend/internal/diagnose"
	"codemend/internal/knowledge"
	"codemend/internal/logging"
	"codemend/internal/types"
)

// KnowledgeStrategy retrieves known fix patterns by similarity against
// the diagnostic message and applies their rewrites. Lookups go to an
// external index, so the strategy is suspending and honors the
// coordinator's timeout.
type KnowledgeStrategy struct {
	store *knowledge.Store
}

// NewKnowledge creates the knowledge-assisted strategy.
func NewKnowledge(store *knowledge.Store) *KnowledgeStrategy {
	return &KnowledgeStrategy{store: store}
}

func (s *KnowledgeStrategy) Name() string { return "knowledge" }

func (s *KnowledgeStrategy) Suspending() bool { return true }

func (s *KnowledgeStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryDeprecatedAPI:   true,
		diagnose.CategoryTypeConformance: true,
		diagnose.CategoryNetworkSecurity: true,
		diagnose.CategoryUnknown:         true,
	}
}

// Apply looks up each diagnostic and applies the best pattern's rewrite
// to the diagnosed file (or the whole tree when the diagnostic carries
// no location).
func (s *KnowledgeStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	result := Result{Files: out}

	for _, d := range diags {
		if !s.Handles()[d.Category] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return unchanged(files), err
		}

		match, err := s.store.Lookup(ctx, string(d.Category), d.Message)
		if err != nil {
			return unchanged(files), fmt.Errorf("pattern lookup failed: %w", err)
		}
		if match == nil {
			continue
		}

		re, err := regexp.Compile(match.Pattern.MatchRegex)
		if err != nil {
			logging.Get(logging.CategoryKnowledge).Warn(
				"pattern %d has invalid regex %q: %v", match.Pattern.ID, match.Pattern.MatchRegex, err)
			continue
		}

		applied := false
		targets := allIndexes(out)
		if d.File != "" {
			if i, ok := idx[d.File]; ok {
				targets = []int{i}
			}
		}
		for _, i := range targets {
			rewritten := re.ReplaceAllString(out[i].Content, match.Pattern.Replacement)
			if rewritten != out[i].Content {
				out[i].Content = rewritten
				applied = true
			}
		}
		if applied {
			result.Changed = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("applied pattern %d: %s", match.Pattern.ID, match.Pattern.Note))
			result.PatternIDs = append(result.PatternIDs, match.Pattern.ID)
			logging.Knowledge("applied pattern %d (%s) score %.2f",
				match.Pattern.ID, match.Pattern.Note, match.Score)
		}
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	return result, nil
}

func allIndexes(files []types.SourceFile) []int {
	out := make([]int, len(files))
	for i := range files {
		out[i] = i
	}
	return out
}
