package strategy

import (
	"context"
	"strings"
	"testing"

	"codemend/internal/diagnose"
	"codemend/internal/types"
)

func TestDependencyPrependsMissingImport(t *testing.T) {
	content := `// FeedChart.swift

struct FeedChart: View {
    var body: some View {
        Chart {
            BarMark(x: .value("day", 1), y: .value("count", 2))
        }
    }
}
`
	files := []types.SourceFile{{Path: "FeedChart.swift", Content: content}}
	diags := diagnose.Classify([]string{
		"FeedChart.swift:5:9: error: cannot find 'Chart' in scope",
	})

	result, err := NewDependency().Apply(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Changed {
		t.Fatal("Changed = false")
	}
	fixed := result.Files[0].Content
	if !strings.Contains(fixed, "import Charts") {
		t.Errorf("missing import not added:\n%s", fixed)
	}
	if !strings.Contains(fixed, "import SwiftUI") {
		t.Errorf("View usage should pull in SwiftUI too:\n%s", fixed)
	}
}

func TestDependencyInsertsAfterExistingImports(t *testing.T) {
	content := "import SwiftUI\n\nstruct V: View {\n    var body: some View { Chart { } }\n}\n"
	files := []types.SourceFile{{Path: "V.swift", Content: content}}
	diags := diagnose.Classify([]string{
		"V.swift:4:25: error: cannot find 'Chart' in scope",
	})

	result, err := NewDependency().Apply(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	lines := strings.Split(result.Files[0].Content, "\n")
	if lines[0] != "import SwiftUI" {
		t.Errorf("existing import displaced: %q", lines[0])
	}
	if lines[1] != "import Charts" {
		t.Errorf("new import not after existing imports: %q", lines[1])
	}
}

func TestDependencyNeverDuplicatesDeclarations(t *testing.T) {
	content := "import SwiftUI\nimport Charts\n\nstruct V: View {\n    var body: some View { Chart { } }\n}\n"
	files := []types.SourceFile{{Path: "V.swift", Content: content}}
	diags := diagnose.Classify([]string{
		"V.swift:5:25: error: cannot find 'Chart' in scope",
	})

	result, err := NewDependency().Apply(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Changed {
		t.Fatal("declarations already present; nothing should change")
	}
	if strings.Count(result.Files[0].Content, "import Charts") != 1 {
		t.Error("declaration duplicated")
	}
}

func TestDependencyNeverRemovesDeclarations(t *testing.T) {
	content := "import Foundation\nimport SwiftUI\n\nstruct V: View {\n    var body: some View { Chart { } }\n}\n"
	files := []types.SourceFile{{Path: "V.swift", Content: content}}
	diags := diagnose.Classify([]string{
		"V.swift:5:25: error: cannot find 'Chart' in scope",
	})

	result, err := NewDependency().Apply(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, decl := range []string{"import Foundation", "import SwiftUI"} {
		if !strings.Contains(result.Files[0].Content, decl) {
			t.Errorf("existing declaration %q removed", decl)
		}
	}
}
