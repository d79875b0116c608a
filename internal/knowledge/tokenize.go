package knowledge

import "strings"

// stopTokens are message boilerplate carrying no signal for matching.
var stopTokens = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"to": true, "is": true, "was": true, "error": true, "use": true,
	"instead": true, "and": true, "or": true, "on": true, "for": true,
}

// Tokenize lower-cases a message and splits it into significant tokens.
// Single characters and stop words are dropped.
func Tokenize(message string) map[string]bool {
	tokens := make(map[string]bool)
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		if len(f) < 2 || stopTokens[f] {
			continue
		}
		tokens[f] = true
	}
	return tokens
}

// Overlap returns the Jaccard similarity of two token sets.
func Overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
