package verify

import (
	"fmt"
	"strings"

	"codemend/internal/types"
)

// minMeaningfulLength is the smallest non-whitespace content accepted
// as a plausible source file.
const minMeaningfulLength = 10

// declarationKeywords are the shallow markers of "looks like source".
// Deliberately not a grammar: whole-word presence of any one suffices.
var declarationKeywords = []string{
	"struct", "class", "enum", "protocol", "extension",
	"func", "function", "def", "var", "let", "import", "type", "interface",
}

// delimiterPairs checked for balanced counts.
var delimiterPairs = [][2]rune{
	{'{', '}'},
	{'(', ')'},
	{'[', ']'},
}

// StructuralIssues runs shallow sanity checks on one file: balanced
// delimiter counts, a minimum of non-whitespace content, and at least
// one recognizable declaration keyword. Findings describe the file;
// the caller decides whether they are advisory or blocking.
func StructuralIssues(f types.SourceFile) []string {
	var issues []string

	stripped := strings.TrimSpace(f.Content)
	if len(stripped) < minMeaningfulLength {
		issues = append(issues, fmt.Sprintf("%s: content too short to be a source file", f.Path))
		return issues
	}

	for _, pair := range delimiterPairs {
		open := strings.Count(f.Content, string(pair[0]))
		closed := strings.Count(f.Content, string(pair[1]))
		if open != closed {
			issues = append(issues, fmt.Sprintf(
				"%s: unbalanced %c%c delimiters (%d open, %d close)",
				f.Path, pair[0], pair[1], open, closed))
		}
	}

	if !containsDeclaration(f.Content) {
		issues = append(issues, fmt.Sprintf("%s: no recognizable declaration keyword", f.Path))
	}
	return issues
}

func containsDeclaration(content string) bool {
	for _, word := range strings.FieldsFunc(content, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		for _, kw := range declarationKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}
