package strategy

import (
	"context"
	"fmt"
	"regexp"

	"codemend/internal/diagnose"
	"codemend/internal/logging"
	"codemend/internal/registry"
	"codemend/internal/types"
)

// unresolvedName extracts the quoted identifier from an
// unresolved-identifier message.
var unresolvedName = regexp.MustCompile(`'([A-Za-z_][A-Za-z0-9_]*)'`)

// reservedRenames maps reserved words that generators occasionally use
// as type names to safe replacements.
var reservedRenames = map[string]string{
	"Type":     "Kind",
	"Protocol": "ProtocolInfo",
	"Self":     "SelfInfo",
}

// IdentifierStrategy rewrites whole-word occurrences of an expected
// identifier to its learned actual identifier. Rewrites are restricted
// to the lexical forms "type declaration", "type annotation", "generic
// parameter", "collection element type", and "initializer call", so an
// unrelated substring such as AppErrorViewExtension is never touched.
type IdentifierStrategy struct {
	registry *registry.Registry
	appType  string
}

// NewIdentifier creates the identifier strategy bound to an app-type
// bucket of the registry.
func NewIdentifier(reg *registry.Registry, appType string) *IdentifierStrategy {
	return &IdentifierStrategy{registry: reg, appType: appType}
}

func (s *IdentifierStrategy) Name() string { return "identifier" }

func (s *IdentifierStrategy) Suspending() bool { return false }

func (s *IdentifierStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryUnresolvedIdentifier: true,
		diagnose.CategoryReservedIdentifier:   true,
	}
}

// Apply resolves each diagnosed identifier through the registry (or the
// reserved-word table) and rewrites its lexical occurrences across the
// whole tree. Cross-file rewriting is deliberate: the rename that fixes
// the diagnosed file must follow every reference.
func (s *IdentifierStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	out := types.CloneTree(files)
	result := Result{Files: out}

	for _, d := range diags {
		if !s.Handles()[d.Category] {
			continue
		}
		m := unresolvedName.FindStringSubmatch(d.Message)
		if m == nil {
			continue
		}
		expected := m[1]

		var actual string
		switch d.Category {
		case diagnose.CategoryReservedIdentifier:
			actual = reservedRenames[expected]
		default:
			actual, _ = s.registry.Resolve(s.appType, expected)
		}
		if actual == "" || actual == expected {
			continue
		}

		touched := false
		for i := range out {
			rewritten := RewriteIdentifier(out[i].Content, expected, actual)
			if rewritten != out[i].Content {
				out[i].Content = rewritten
				touched = true
			}
		}
		if touched {
			result.Changed = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("renamed %s -> %s", expected, actual))
			result.AppliedMappings = append(result.AppliedMappings,
				AppliedMapping{Expected: expected, Actual: actual})
			logging.Strategy("identifier: %s -> %s (%s)", expected, actual, d.File)
		}
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	return result, nil
}

// lexicalForms builds the rewrite patterns for one identifier. Each
// pattern captures its surrounding context so the replacement preserves
// it.
func lexicalForms(identifier string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(identifier)
	return []*regexp.Regexp{
		// Type declaration: struct X, class X, enum X, extension X.
		regexp.MustCompile(`\b((?:struct|class|enum|protocol|extension)\s+)` + quoted + `\b`),
		// Type annotation: let v: X, -> X, as X.
		regexp.MustCompile(`(:\s*|->\s*|\bas[!?]?\s+)` + quoted + `\b`),
		// Generic parameter: <X>, <Key, X>.
		regexp.MustCompile(`([<,]\s*)` + quoted + `(\s*[>,])`),
		// Collection element type: [X], [X:, : X].
		regexp.MustCompile(`(\[\s*)` + quoted + `(\s*[\]:])`),
		// Initializer call: X(...)
		regexp.MustCompile(`\b` + quoted + `(\s*\()`),
	}
}

// RewriteIdentifier applies all lexical-form rewrites of expected to
// actual within content.
func RewriteIdentifier(content, expected, actual string) string {
	forms := lexicalForms(expected)

	content = forms[0].ReplaceAllString(content, "${1}"+actual)
	content = forms[1].ReplaceAllString(content, "${1}"+actual)
	content = forms[2].ReplaceAllString(content, "${1}"+actual+"${2}")
	content = forms[3].ReplaceAllString(content, "${1}"+actual+"${2}")
	content = forms[4].ReplaceAllString(content, actual+"${1}")
	return content
}
