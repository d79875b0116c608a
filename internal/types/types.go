// Package types holds the shared data model for the recovery engine.
// SourceFile trees are session-local: strategies return a complete
// replacement tree or leave the input untouched, never a partial write.
package types

import (
	"path/filepath"
	"sort"
	"strings"
)

// SourceFile is one file of a candidate source tree. Identity is Path.
type SourceFile struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// Basename returns the file's basename including extension.
func (f SourceFile) Basename() string {
	return filepath.Base(f.Path)
}

// Depth returns the number of directory components above the basename.
func (f SourceFile) Depth() int {
	clean := filepath.ToSlash(filepath.Clean(f.Path))
	return strings.Count(clean, "/")
}

// CloneTree returns a copy of a source tree. Strategies operate on copies
// so a rejected fix never pollutes the coordinator's working set.
func CloneTree(files []SourceFile) []SourceFile {
	if files == nil {
		return nil
	}
	out := make([]SourceFile, len(files))
	copy(out, files)
	return out
}

// IndexByPath builds a path -> index lookup for a tree.
func IndexByPath(files []SourceFile) map[string]int {
	idx := make(map[string]int, len(files))
	for i, f := range files {
		idx[f.Path] = i
	}
	return idx
}

// Paths returns the sorted set of paths in a tree.
func Paths(files []SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

// TreeChanged reports whether two trees differ in any path or content.
func TreeChanged(before, after []SourceFile) bool {
	if len(before) != len(after) {
		return true
	}
	prev := make(map[string]string, len(before))
	for _, f := range before {
		prev[f.Path] = f.Content
	}
	for _, f := range after {
		content, ok := prev[f.Path]
		if !ok || content != f.Content {
			return true
		}
	}
	return false
}
