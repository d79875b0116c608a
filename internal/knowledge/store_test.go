package knowledge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"), 0.3)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedIfEmptyIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))
	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultSeedPatterns()), n)
}

func TestLookupFindsSimilarPattern(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))

	match, err := s.Lookup(ctx, "deprecated-api",
		"'foregroundColor' was deprecated in iOS 17.0: use foregroundStyle")
	require.NoError(t, err)
	require.NotNil(t, match, "expected a pattern match")
	assert.Contains(t, match.Pattern.Note, "foregroundStyle")
	assert.Greater(t, match.Score, 0.3)
}

func TestLookupRespectsThreshold(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))

	match, err := s.Lookup(ctx, "deprecated-api", "completely unrelated words here")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestLookupIsCategoryScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))

	match, err := s.Lookup(ctx, "unterminated-literal",
		"'foregroundColor' was deprecated in iOS 17.0")
	require.NoError(t, err)
	assert.Nil(t, match, "match leaked across categories")
}

func TestLookupTimeoutBoundsTheQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedIfEmpty(ctx, DefaultSeedPatterns()))

	// A deadline already in the past when the query starts must surface
	// as an error rather than a silent miss.
	s.SetLookupTimeout(1 * time.Nanosecond)
	_, err := s.Lookup(ctx, "deprecated-api",
		"'foregroundColor' was deprecated in iOS 17.0")
	require.Error(t, err)

	// Back to a generous bound the same lookup succeeds.
	s.SetLookupTimeout(10 * time.Second)
	match, err := s.Lookup(ctx, "deprecated-api",
		"'foregroundColor' was deprecated in iOS 17.0")
	require.NoError(t, err)
	require.NotNil(t, match)
}

func TestRecordHitRanksProvenPatterns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two patterns with identical error text; only hit counts differ.
	_, err := s.Add(ctx, Pattern{
		Category: "deprecated-api", ErrorPattern: "'spacer' was deprecated",
		MatchRegex: `SpacerOld`, Replacement: "SpacerA", Note: "a",
	})
	require.NoError(t, err)
	id, err := s.Add(ctx, Pattern{
		Category: "deprecated-api", ErrorPattern: "'spacer' was deprecated",
		MatchRegex: `SpacerOld`, Replacement: "SpacerB", Note: "b",
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordHit(ctx, id))

	match, err := s.Lookup(ctx, "deprecated-api", "'spacer' was deprecated")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "b", match.Pattern.Note, "proven pattern should win score ties")
}

func TestTokenizeAndOverlap(t *testing.T) {
	a := Tokenize("'ErrorView' was deprecated in iOS 17.0")
	assert.True(t, a["errorview"])
	assert.True(t, a["deprecated"])
	assert.False(t, a["was"], "stop word kept")

	b := Tokenize("'ErrorView' deprecated")
	score := Overlap(a, b)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, 1.0, Overlap(a, a))
	assert.Equal(t, 0.0, Overlap(a, map[string]bool{}))
}
