package diagnose

import "testing"

func TestFingerprintIgnoresLineNumbers(t *testing.T) {
	a := Classify([]string{
		"Sources/App/ContentView.swift:14:9: error: cannot find 'ErrorView' in scope",
		"Sources/App/App.swift:40:1: error: expected '}' at end of brace statement",
	})
	b := Classify([]string{
		"Sources/App/App.swift:44:2: error: expected '}' at end of brace statement",
		"Sources/App/ContentView.swift:21:3: error: cannot find 'ErrorView' in scope",
	})

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprints differ for diagnostic sets that differ only in line numbers and order")
	}
}

func TestFingerprintDistinguishesCategories(t *testing.T) {
	a := Classify([]string{"a.swift:1:1: error: cannot find 'X' in scope"})
	b := Classify([]string{"a.swift:1:1: error: unterminated string literal"})

	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("distinct diagnostic sets share a fingerprint")
	}
}

func TestFingerprintUsesBasenameNotFullPath(t *testing.T) {
	a := Classify([]string{"Old/Path/View.swift:1:1: error: cannot find 'X' in scope"})
	b := Classify([]string{"New/Deeper/Path/View.swift:9:4: error: cannot find 'Y' in scope"})

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint should be stable across path moves and identifier renames")
	}
}

func TestEmptyFingerprintIsDistinguished(t *testing.T) {
	if got := Fingerprint(nil); got != EmptyFingerprint {
		t.Fatalf("Fingerprint(nil) = %q, want %q", got, EmptyFingerprint)
	}

	real := Fingerprint(Classify([]string{"a.swift:1:1: error: cannot find 'X' in scope"}))
	if real == EmptyFingerprint {
		t.Fatal("real fingerprint collides with the no-error fingerprint")
	}
}
