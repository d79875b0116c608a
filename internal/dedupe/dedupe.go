// Package dedupe enforces basename uniqueness across a source tree.
// Build tools treat two files with the same basename as an ambiguous
// output; resolving the conflict before the tree reaches the builder
// prevents that failure class entirely instead of fixing it afterwards.
package dedupe

import (
	"path/filepath"

	"codemend/internal/logging"
	"codemend/internal/types"
)

// Deduper resolves duplicate-named files across a tree.
type Deduper struct {
	// preferredRoots maps singleton basenames to the directory their
	// one surviving copy must live in. Empty value means tree root.
	preferredRoots map[string]string
}

// DefaultPreferredRoots covers the singleton artifacts generated app
// trees commonly duplicate: the app entry point and the root view.
func DefaultPreferredRoots() map[string]string {
	return map[string]string{
		"App.swift":         "Sources/App",
		"ContentView.swift": "Sources/App",
		"main.swift":        "Sources/App",
	}
}

// New creates a Deduper. A nil table falls back to the defaults.
func New(preferredRoots map[string]string) *Deduper {
	if preferredRoots == nil {
		preferredRoots = DefaultPreferredRoots()
	}
	return &Deduper{preferredRoots: preferredRoots}
}

// Result reports the outcome of a dedupe pass.
type Result struct {
	Files   []types.SourceFile
	Removed []string // Paths dropped in favor of a preferred copy
}

// Dedupe keeps at most one file per basename. Preference order:
// (1) the preferred-root table when the basename is a known singleton,
// (2) the deepest directory nesting (more specific wins),
// (3) first-seen order.
// Dedupe is idempotent: running it on its own output is a no-op.
func (d *Deduper) Dedupe(files []types.SourceFile) Result {
	winners := make(map[string]int, len(files)) // basename -> index in files
	for i, f := range files {
		base := f.Basename()
		prev, seen := winners[base]
		if !seen {
			winners[base] = i
			continue
		}
		if d.prefers(f, files[prev]) {
			winners[base] = i
		}
	}

	result := Result{Files: make([]types.SourceFile, 0, len(winners))}
	keep := make(map[int]bool, len(winners))
	for _, idx := range winners {
		keep[idx] = true
	}
	for i, f := range files {
		if keep[i] {
			result.Files = append(result.Files, f)
		} else {
			result.Removed = append(result.Removed, f.Path)
		}
	}

	if len(result.Removed) > 0 {
		logging.Get(logging.CategoryDedupe).Info("Removed %d duplicate artifacts: %v",
			len(result.Removed), result.Removed)
	}
	return result
}

// prefers reports whether candidate should win over incumbent for the
// same basename.
func (d *Deduper) prefers(candidate, incumbent types.SourceFile) bool {
	if root, ok := d.preferredRoots[candidate.Basename()]; ok {
		cleanRoot := filepath.ToSlash(filepath.Clean(root))
		if root == "" || cleanRoot == "." {
			cleanRoot = ""
		}
		candidateAtRoot := dirOf(candidate.Path) == cleanRoot
		incumbentAtRoot := dirOf(incumbent.Path) == cleanRoot
		if candidateAtRoot != incumbentAtRoot {
			return candidateAtRoot
		}
	}
	// Deeper nesting is treated as more specific. Ties keep first-seen.
	return candidate.Depth() > incumbent.Depth()
}

// Merge folds newly-proposed files into an existing tree. A proposed
// file lands at its own path only when no file of that basename exists
// anywhere in the tree; otherwise the existing file's content is
// updated in place and the proposed path is discarded.
func (d *Deduper) Merge(existing, proposed []types.SourceFile) []types.SourceFile {
	merged := types.CloneTree(existing)
	byBase := make(map[string]int, len(merged))
	for i, f := range merged {
		byBase[f.Basename()] = i
	}

	for _, p := range proposed {
		if i, ok := byBase[p.Basename()]; ok {
			if merged[i].Path != p.Path {
				logging.Get(logging.CategoryDedupe).Debug(
					"Merge: redirected %s into existing %s", p.Path, merged[i].Path)
			}
			merged[i].Content = p.Content
			continue
		}
		merged = append(merged, p)
		byBase[p.Basename()] = len(merged) - 1
	}
	return merged
}

// HasDuplicates reports whether any basename occurs more than once.
func HasDuplicates(files []types.SourceFile) bool {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		base := f.Basename()
		if seen[base] {
			return true
		}
		seen[base] = true
	}
	return false
}

func dirOf(path string) string {
	dir := filepath.ToSlash(filepath.Dir(filepath.Clean(path)))
	if dir == "." {
		return ""
	}
	return dir
}
