// Package knowledge stores known fix patterns and retrieves them by
// textual similarity against a diagnostic message. Patterns are learned
// write-after-verify: hit counts only move after the coordinator
// accepted the fix, so retrieval ranks proven patterns first.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
	"gopkg.in/yaml.v3"

	"codemend/internal/logging"
)

// Pattern is one known fix: a representative error message, a content
// regex to locate the broken construct, and its replacement.
type Pattern struct {
	ID           int64  `yaml:"-"`
	Category     string `yaml:"category"`
	ErrorPattern string `yaml:"error_pattern"`
	MatchRegex   string `yaml:"match_regex"`
	Replacement  string `yaml:"replacement"`
	Note         string `yaml:"note"`
	Hits         int    `yaml:"-"`
}

// Match is a retrieved pattern with its similarity score.
type Match struct {
	Pattern Pattern
	Score   float64
}

// Store is the SQLite-backed fix-pattern store.
type Store struct {
	db            *sql.DB
	mu            sync.RWMutex
	minScore      float64
	lookupTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS fix_patterns (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	category      TEXT NOT NULL,
	error_pattern TEXT NOT NULL,
	match_regex   TEXT NOT NULL DEFAULT '',
	replacement   TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	hits          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_fix_patterns_category ON fix_patterns(category);
`

// Open opens (creating if needed) the store at path. minScore is the
// similarity threshold below which Lookup reports no match; it is a
// tunable, not a contract.
func Open(path string, minScore float64) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create knowledge schema: %w", err)
	}

	return &Store{db: db, minScore: minScore}, nil
}

// SetLookupTimeout bounds how long a single Lookup may hold up the
// repair chain. Zero means no bound beyond the caller's context.
func (s *Store) SetLookupTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupTimeout = d
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of stored patterns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fix_patterns`).Scan(&n)
	return n, err
}

// Add inserts a pattern and returns its ID.
func (s *Store) Add(ctx context.Context, p Pattern) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fix_patterns (category, error_pattern, match_regex, replacement, note, hits)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Category, p.ErrorPattern, p.MatchRegex, p.Replacement, p.Note, p.Hits)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pattern: %w", err)
	}
	return res.LastInsertId()
}

// Lookup retrieves the best-scoring pattern for a diagnostic message,
// restricted to the given category (empty category searches all).
// Returns nil when nothing clears the similarity threshold.
func (s *Store) Lookup(ctx context.Context, category, message string) (*Match, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "Lookup")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
		defer cancel()
	}

	query := `SELECT id, category, error_pattern, match_regex, replacement, note, hits
	          FROM fix_patterns`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY hits DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pattern query failed: %w", err)
	}
	defer rows.Close()

	queryTokens := Tokenize(message)
	var best *Match
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.Category, &p.ErrorPattern, &p.MatchRegex,
			&p.Replacement, &p.Note, &p.Hits); err != nil {
			return nil, fmt.Errorf("pattern scan failed: %w", err)
		}
		score := Overlap(queryTokens, Tokenize(p.ErrorPattern))
		if score < s.minScore {
			continue
		}
		// Rows arrive hits-descending, so strict improvement keeps the
		// most proven pattern on score ties.
		if best == nil || score > best.Score {
			m := Match{Pattern: p, Score: score}
			best = &m
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if best != nil {
		logging.Knowledge("Lookup hit: pattern %d (%s) score %.2f for %q",
			best.Pattern.ID, best.Pattern.Note, best.Score, message)
	}
	return best, nil
}

// RecordHit bumps a pattern's hit count after its fix was verified.
func (s *Store) RecordHit(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE fix_patterns SET hits = hits + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	return nil
}

// =============================================================================
// SEEDING
// =============================================================================

// seedFile is the YAML shape of a pattern seed file.
type seedFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// DefaultSeedPatterns covers fixes that recur across generated app
// trees, mostly deprecated-API renames.
func DefaultSeedPatterns() []Pattern {
	return []Pattern{
		{
			Category:     "deprecated-api",
			ErrorPattern: "'foregroundColor' was deprecated in iOS 17.0",
			MatchRegex:   `\.foregroundColor\(`,
			Replacement:  ".foregroundStyle(",
			Note:         "foregroundColor renamed to foregroundStyle",
		},
		{
			Category:     "deprecated-api",
			ErrorPattern: "'NavigationView' was deprecated in iOS 16.0",
			MatchRegex:   `\bNavigationView\b`,
			Replacement:  "NavigationStack",
			Note:         "NavigationView replaced by NavigationStack",
		},
		{
			Category:     "deprecated-api",
			ErrorPattern: "'animation' was deprecated in iOS 15.0: Use withAnimation or animation(_:value:) instead",
			MatchRegex:   `\.animation\(([^),]+)\)`,
			Replacement:  ".animation($1, value: UUID())",
			Note:         "animation requires an explicit value parameter",
		},
		{
			Category:     "type-conformance",
			ErrorPattern: "type does not conform to protocol 'Identifiable'",
			MatchRegex:   `(struct\s+\w+)\s*:\s*Codable\s*\{`,
			Replacement:  "$1: Codable, Identifiable {\n    var id = UUID()",
			Note:         "add Identifiable conformance with a UUID id",
		},
	}
}

// SeedIfEmpty inserts the given patterns only when the store has none,
// so learned hit counts survive restarts.
func (s *Store) SeedIfEmpty(ctx context.Context, patterns []Pattern) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, p := range patterns {
		if _, err := s.Add(ctx, p); err != nil {
			return err
		}
	}
	logging.Knowledge("Seeded %d fix patterns", len(patterns))
	return nil
}

// LoadSeedFile reads patterns from a YAML file and seeds an empty store.
func (s *Store) LoadSeedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pattern seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse pattern seed file: %w", err)
	}
	return s.SeedIfEmpty(ctx, f.Patterns)
}
