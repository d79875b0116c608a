package diagnose

import (
	"testing"
)

func TestClassifyCategories(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Category
	}{
		{"unresolved", "Sources/App/ContentView.swift:14:9: error: cannot find 'ErrorView' in scope", CategoryUnresolvedIdentifier},
		{"unresolved_legacy", "main.swift:3:1: error: use of unresolved identifier 'foo'", CategoryUnresolvedIdentifier},
		{"missing_import", "Sources/App/Feed.swift:1:8: error: no such module 'Charts'", CategoryMissingImport},
		{"reserved", "Model.swift:7:6: error: keyword 'Type' cannot be used as an identifier here", CategoryReservedIdentifier},
		{"deprecated", "View.swift:22:10: error: 'foregroundColor' was deprecated in iOS 17.0", CategoryDeprecatedAPI},
		{"brace", "App.swift:40:1: error: expected '}' at end of brace statement", CategoryBraceMismatch},
		{"literal", "Strings.swift:5:20: error: unterminated string literal", CategoryUnterminatedLiteral},
		{"conformance", "Item.swift:3:8: error: type 'Item' does not conform to protocol 'Identifiable'", CategoryTypeConformance},
		{"network", "error: App Transport Security has blocked a cleartext HTTP connection", CategoryNetworkSecurity},
		{"unknown", "something entirely unexpected happened", CategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify([]string{tc.line})
			if len(got) != 1 {
				t.Fatalf("Classify returned %d diagnostics, want 1", len(got))
			}
			if got[0].Category != tc.want {
				t.Fatalf("category = %s, want %s (line %q)", got[0].Category, tc.want, tc.line)
			}
		})
	}
}

func TestClassifyParsesLocation(t *testing.T) {
	got := Classify([]string{"Sources/App/ContentView.swift:14:9: error: cannot find 'ErrorView' in scope"})
	d := got[0]
	if d.File != "Sources/App/ContentView.swift" {
		t.Errorf("File = %q", d.File)
	}
	if d.Line != 14 || d.Col != 9 {
		t.Errorf("Line:Col = %d:%d, want 14:9", d.Line, d.Col)
	}
	if d.Message != "cannot find 'ErrorView' in scope" {
		t.Errorf("Message = %q", d.Message)
	}
}

func TestClassifyNeverDrops(t *testing.T) {
	lines := []string{
		"free-form text with no structure",
		"linker failed: exit status 1",
		"",
		"   ",
	}
	got := Classify(lines)
	if len(got) != 2 {
		t.Fatalf("Classify returned %d diagnostics, want 2 (blank lines skipped, rest kept)", len(got))
	}
	for _, d := range got {
		if d.Category != CategoryUnknown {
			t.Errorf("category = %s, want unknown for %q", d.Category, d.Raw)
		}
	}
}

func TestFilterByCategory(t *testing.T) {
	diags := Classify([]string{
		"a.swift:1:1: error: cannot find 'X' in scope",
		"b.swift:2:1: error: expected '}' at end of brace statement",
	})
	got := FilterByCategory(diags, map[Category]bool{CategoryBraceMismatch: true})
	if len(got) != 1 || got[0].Category != CategoryBraceMismatch {
		t.Fatalf("filtered = %#v", got)
	}
}
