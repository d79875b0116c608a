package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"codemend/internal/diagnose"
	"codemend/internal/logging"
	"codemend/internal/types"
)

// capabilityRule maps a usage pattern to the declaration it requires.
type capabilityRule struct {
	usage       *regexp.Regexp
	declaration string
}

// capabilityTable is the fixed "uses X => requires import Y" table.
// Order matters only for log stability; rules are independent.
var capabilityTable = []capabilityRule{
	{regexp.MustCompile(`\b(Chart|BarMark|LineMark|PointMark)\b`), "import Charts"},
	{regexp.MustCompile(`\b(Map|MapMarker|MKCoordinateRegion)\b`), "import MapKit"},
	{regexp.MustCompile(`\b(CLLocationManager|CLLocation)\b`), "import CoreLocation"},
	{regexp.MustCompile(`\b(AVPlayer|AVAudioPlayer)\b`), "import AVKit"},
	{regexp.MustCompile(`\b(ObservableObject|@Published|AnyCancellable)\b`), "import Combine"},
	{regexp.MustCompile(`\b(UIImage|UIColor|UIApplication)\b`), "import UIKit"},
	{regexp.MustCompile(`\b(View|Text|VStack|HStack|NavigationStack)\b`), "import SwiftUI"},
	{regexp.MustCompile(`\b(URLSession|URLRequest)\b`), "import Foundation"},
}

// DependencyStrategy prepends missing declarations derived from the
// capability table. It never removes an existing declaration.
type DependencyStrategy struct{}

// NewDependency creates the dependency strategy.
func NewDependency() *DependencyStrategy {
	return &DependencyStrategy{}
}

func (s *DependencyStrategy) Name() string { return "dependency" }

func (s *DependencyStrategy) Suspending() bool { return false }

func (s *DependencyStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryMissingImport:        true,
		diagnose.CategoryUnresolvedIdentifier: true,
		diagnose.CategoryNetworkSecurity:      true,
	}
}

// Apply scans each diagnosed file against the capability table and
// prepends every required declaration the file uses but lacks.
func (s *DependencyStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	result := Result{Files: out}

	for _, d := range diags {
		if !s.Handles()[d.Category] || d.File == "" {
			continue
		}
		i, ok := idx[d.File]
		if !ok {
			continue
		}

		for _, rule := range capabilityTable {
			if !rule.usage.MatchString(out[i].Content) {
				continue
			}
			if hasDeclaration(out[i].Content, rule.declaration) {
				continue
			}
			out[i].Content = prependDeclaration(out[i].Content, rule.declaration)
			result.Changed = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("%s: added %q", d.File, rule.declaration))
			logging.StrategyDebug("dependency: %s gets %q", d.File, rule.declaration)
		}
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	return result, nil
}

// hasDeclaration reports whether the declaration already appears as a
// whole line.
func hasDeclaration(content, declaration string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == declaration {
			return true
		}
	}
	return false
}

// prependDeclaration inserts the declaration after the last existing
// import, or at the top of the file when there is none. Leading
// comment headers stay on top.
func prependDeclaration(content, declaration string) string {
	lines := strings.Split(content, "\n")

	insertAt := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import "):
			insertAt = i + 1
		case insertAt == 0 && (strings.HasPrefix(trimmed, "//") || trimmed == ""):
			insertAt = i + 1
		}
	}

	updated := make([]string, 0, len(lines)+1)
	updated = append(updated, lines[:insertAt]...)
	updated = append(updated, declaration)
	updated = append(updated, lines[insertAt:]...)
	return strings.Join(updated, "\n")
}
