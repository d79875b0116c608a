package diagnose

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EmptyFingerprint is the distinguished fingerprint of an empty
// diagnostic set. It is never equal to any hashed fingerprint.
const EmptyFingerprint = "fp:no-errors"

var (
	quotedIdentifier = regexp.MustCompile("'[^']*'|\"[^\"]*\"|`[^`]*`")
	numberRun        = regexp.MustCompile(`\d+`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Fingerprint computes a stable hash over a normalized diagnostic set.
// Line and column numbers are excluded because they drift between
// repair attempts; full paths are reduced to basenames for the same
// reason. Two diagnostic lists differing only in ordering, line
// numbers, or quoted identifiers produce the same fingerprint.
func Fingerprint(diags []Diagnostic) string {
	if len(diags) == 0 {
		return EmptyFingerprint
	}

	tuples := make([]string, 0, len(diags))
	for _, d := range diags {
		base := ""
		if d.File != "" {
			base = filepath.Base(d.File)
		}
		tuples = append(tuples, string(d.Category)+"|"+normalizeMessage(d.Message)+"|"+base)
	}
	sort.Strings(tuples)

	sum := sha256.Sum256([]byte(strings.Join(tuples, "\n")))
	return hex.EncodeToString(sum[:])
}

// normalizeMessage lower-cases a message and strips the parts that vary
// between otherwise-identical diagnostics: quoted identifiers and
// numeric literals.
func normalizeMessage(msg string) string {
	s := strings.ToLower(msg)
	s = quotedIdentifier.ReplaceAllString(s, "_")
	s = numberRun.ReplaceAllString(s, "_")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
