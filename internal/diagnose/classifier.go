// Package diagnose parses raw build diagnostics into classified
// Diagnostic values and computes stable fingerprints over diagnostic
// sets for loop detection.
//
// Classification is rule-table driven: an ordered list of
// (regex, category) pairs, first match wins. The table is total -
// anything unmatched becomes CategoryUnknown, never dropped.
package diagnose

import (
	"regexp"
	"strconv"
	"strings"

	"codemend/internal/logging"
)

// Category classifies a diagnostic by failure class.
type Category string

const (
	CategoryMissingImport        Category = "missing-import"
	CategoryUnresolvedIdentifier Category = "unresolved-identifier"
	CategoryReservedIdentifier   Category = "reserved-identifier"
	CategoryDeprecatedAPI        Category = "deprecated-api"
	CategoryBraceMismatch        Category = "syntax-brace-mismatch"
	CategoryUnterminatedLiteral  Category = "unterminated-literal"
	CategoryTypeConformance      Category = "type-conformance"
	CategoryNetworkSecurity      Category = "network/security"
	CategoryUnknown              Category = "unknown"
)

// AllCategories returns every category the classifier can assign.
func AllCategories() []Category {
	return []Category{
		CategoryMissingImport,
		CategoryUnresolvedIdentifier,
		CategoryReservedIdentifier,
		CategoryDeprecatedAPI,
		CategoryBraceMismatch,
		CategoryUnterminatedLiteral,
		CategoryTypeConformance,
		CategoryNetworkSecurity,
		CategoryUnknown,
	}
}

// Diagnostic is a single classified compiler/build error.
// Immutable once created.
type Diagnostic struct {
	Raw      string   // Original diagnostic line
	File     string   // Source path, empty when not parseable
	Line     int      // 1-based line number, 0 when unknown
	Col      int      // 1-based column, 0 when unknown
	Message  string   // Free text after the location prefix
	Category Category // First matching rule category
}

// rule is one entry of the ordered classification table.
type rule struct {
	pattern  *regexp.Regexp
	category Category
}

// classificationRules is consulted in order; first match wins.
// CategoryUnknown is the implicit final catch-all.
var classificationRules = []rule{
	{regexp.MustCompile(`(?i)no such module|could not find module|missing required module`), CategoryMissingImport},
	{regexp.MustCompile(`(?i)unterminated string|unterminated character literal|unterminated comment`), CategoryUnterminatedLiteral},
	{regexp.MustCompile(`(?i)expected '[}\])]'|extraneous '[}\])]'|missing.*closing (brace|bracket|paren)|expected declaration.*'}'|braces? (here|mismatch)`), CategoryBraceMismatch},
	{regexp.MustCompile(`(?i)keyword '[^']+' cannot be used as an identifier|reserved (word|identifier|name)`), CategoryReservedIdentifier},
	{regexp.MustCompile(`(?i)'[^']+' (is|was) deprecated|deprecated in`), CategoryDeprecatedAPI},
	{regexp.MustCompile(`(?i)does not conform to( protocol)?|conformance .* requires|missing required (method|witness)`), CategoryTypeConformance},
	{regexp.MustCompile(`(?i)app transport security|insecure (http )?connection|sandbox.*(denied|violation)|entitlement|keychain access`), CategoryNetworkSecurity},
	{regexp.MustCompile(`(?i)cannot find '[^']+' in scope|use of unresolved identifier|use of undeclared (type|identifier)|unresolved reference`), CategoryUnresolvedIdentifier},
}

// locationPattern matches "<path>:<line>[:<col>]: [error:] <message>".
var locationPattern = regexp.MustCompile(`^([^:\s][^:]*):(\d+)(?::(\d+))?:\s*(?:error|warning|note)?:?\s*(.*)$`)

// Classify parses and categorizes a batch of raw diagnostic lines.
// Blank lines are skipped; everything else yields exactly one Diagnostic.
func Classify(raw []string) []Diagnostic {
	out := make([]Diagnostic, 0, len(raw))
	for _, line := range raw {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, classifyOne(trimmed))
	}
	logging.Classify("Classified %d diagnostics from %d lines", len(out), len(raw))
	return out
}

func classifyOne(line string) Diagnostic {
	d := Diagnostic{Raw: line, Message: line}

	if m := locationPattern.FindStringSubmatch(line); m != nil {
		d.File = m[1]
		if n, err := strconv.Atoi(m[2]); err == nil {
			d.Line = n
		}
		if m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil {
				d.Col = n
			}
		}
		if m[4] != "" {
			d.Message = m[4]
		}
	}

	d.Category = categorize(d.Message)
	return d
}

func categorize(message string) Category {
	for _, r := range classificationRules {
		if r.pattern.MatchString(message) {
			return r.category
		}
	}
	return CategoryUnknown
}

// Categories returns the distinct category set of a diagnostic list.
func Categories(diags []Diagnostic) map[Category]bool {
	set := make(map[Category]bool, len(diags))
	for _, d := range diags {
		set[d.Category] = true
	}
	return set
}

// FilterByCategory returns the diagnostics whose category is in the
// given set, preserving input order.
func FilterByCategory(diags []Diagnostic, categories map[Category]bool) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if categories[d.Category] {
			out = append(out, d)
		}
	}
	return out
}
