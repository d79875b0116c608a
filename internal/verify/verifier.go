// Package verify proves that a requested modification produced a real,
// non-regressive diff. It compares path sets, computes per-path content
// similarity with the sergi/go-diff engine, and runs shallow structural
// sanity checks that stay independent of the target language's grammar.
package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"codemend/internal/logging"
	"codemend/internal/types"
)

// Report is the output of verifying a candidate tree against its
// original. Consumed by the caller to decide accept/reject/retry.
type Report struct {
	ChangedPaths     []string           `json:"changed_paths"`
	UnchangedPaths   []string           `json:"unchanged_paths"`
	AddedPaths       []string           `json:"added_paths"`
	MissingPaths     []string           `json:"missing_paths"`
	SimilarityByPath map[string]float64 `json:"similarity_by_path"`
	Issues           []string           `json:"issues,omitempty"`
}

// HasRegression reports whether the candidate dropped any original path.
func (r *Report) HasRegression() bool {
	return len(r.MissingPaths) > 0
}

// Verifier computes modification reports. Safe for concurrent use:
// each call builds its own diff state.
type Verifier struct{}

// New creates a Verifier.
func New() *Verifier {
	return &Verifier{}
}

// Verify computes the symmetric path difference between the trees,
// classifies each shared path as changed or unchanged by similarity
// ratio, and reports issues for the two regression classes: an original
// path missing from the candidate, and a silent no-op (zero changed
// paths against a non-empty request).
func (v *Verifier) Verify(original, candidate []types.SourceFile, request string) *Report {
	timer := logging.StartTimer(logging.CategoryVerify, "Verify")
	defer timer.Stop()

	report := &Report{SimilarityByPath: make(map[string]float64)}

	origIdx := types.IndexByPath(original)
	candIdx := types.IndexByPath(candidate)

	for _, f := range original {
		j, ok := candIdx[f.Path]
		if !ok {
			report.MissingPaths = append(report.MissingPaths, f.Path)
			continue
		}
		ratio := Similarity(f.Content, candidate[j].Content)
		report.SimilarityByPath[f.Path] = ratio
		if ratio >= 1.0 {
			report.UnchangedPaths = append(report.UnchangedPaths, f.Path)
		} else {
			report.ChangedPaths = append(report.ChangedPaths, f.Path)
		}
	}
	for _, f := range candidate {
		if _, ok := origIdx[f.Path]; !ok {
			report.AddedPaths = append(report.AddedPaths, f.Path)
		}
	}

	sort.Strings(report.ChangedPaths)
	sort.Strings(report.UnchangedPaths)
	sort.Strings(report.AddedPaths)
	sort.Strings(report.MissingPaths)

	for _, p := range report.MissingPaths {
		report.Issues = append(report.Issues,
			fmt.Sprintf("original file missing from candidate: %s", p))
	}
	if strings.TrimSpace(request) != "" &&
		len(report.ChangedPaths) == 0 && len(report.AddedPaths) == 0 {
		report.Issues = append(report.Issues,
			"no files changed despite modification request")
	}

	logging.Get(logging.CategoryVerify).Debug(
		"Verify: changed=%d unchanged=%d added=%d missing=%d issues=%d",
		len(report.ChangedPaths), len(report.UnchangedPaths),
		len(report.AddedPaths), len(report.MissingPaths), len(report.Issues))
	return report
}

// CheckStrategyOutput applies the acceptance half of the verifier
// contract to a strategy's candidate tree. Structural findings are
// advisory for deterministic strategies but blocking for the generative
// fallback, which carries no syntactic guarantees.
func (v *Verifier) CheckStrategyOutput(original, candidate []types.SourceFile, generative bool) (bool, []string) {
	report := v.Verify(original, candidate, "")
	if report.HasRegression() {
		return false, report.Issues
	}

	issues := report.Issues
	blocked := false
	candIdx := types.IndexByPath(candidate)
	touched := append(append([]string{}, report.ChangedPaths...), report.AddedPaths...)
	for _, p := range touched {
		for _, issue := range StructuralIssues(candidate[candIdx[p]]) {
			issues = append(issues, issue)
			if generative {
				blocked = true
			}
		}
	}
	return !blocked, issues
}

// Similarity returns a content-similarity ratio in [0,1]. Identical
// content is exactly 1.0; the ratio is one minus the Levenshtein
// distance of the diff normalized by the longer input.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	dist := dmp.DiffLevenshtein(diffs)
	ratio := 1.0 - float64(dist)/float64(longest)
	if ratio < 0 {
		return 0
	}
	return ratio
}
