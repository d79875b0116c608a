// Package registry learns expected -> actual identifier mappings from
// generated source trees. A mapping is a learned relation, not
// ownership: many expected names may map to the same actual name.
// Mappings are bucketed per app type to avoid cross-app false
// positives, and are only ever written after a fix was verified to
// have worked (write-after-verify).
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codemend/internal/logging"
)

// Mapping is one learned expected -> actual identifier relation.
type Mapping struct {
	Expected        string `json:"expected"`
	Actual          string `json:"actual"`
	DiscoveredInApp string `json:"discovered_in_app"`
	Hits            int    `json:"hits"`
}

// Registry is the process-wide identifier mapping store. Reads are
// guarded by an RWMutex; writes are serialized behind the same mutex.
// Persistence is merge-based: a crash mid-write can never destroy
// mappings already on disk.
type Registry struct {
	mu           sync.RWMutex
	buckets      map[string]map[string]*Mapping // app type -> expected -> mapping
	declared     map[string]map[string]bool     // app type -> declared names
	seeds        []SeedGroup
	snapshotPath string
}

// New creates an empty registry persisting to snapshotPath. An empty
// path disables persistence (useful in tests).
func New(snapshotPath string, seeds []SeedGroup) *Registry {
	if seeds == nil {
		seeds = DefaultSeedGroups()
	}
	return &Registry{
		buckets:      make(map[string]map[string]*Mapping),
		declared:     make(map[string]map[string]bool),
		seeds:        seeds,
		snapshotPath: snapshotPath,
	}
}

// Register records the type-like names declared in a generated tree and
// pre-populates mappings by matching the seed pattern groups against
// them. Seeded mappings never overwrite learned ones.
func (r *Registry) Register(appType string, declaredNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	decl := r.declared[appType]
	if decl == nil {
		decl = make(map[string]bool)
		r.declared[appType] = decl
	}
	for _, name := range declaredNames {
		decl[name] = true
	}

	for _, group := range r.seeds {
		for _, declaredName := range declaredNames {
			if !group.matches(declaredName) {
				continue
			}
			for _, expected := range group.Expected {
				if expected == declaredName {
					continue
				}
				if r.putLocked(appType, expected, declaredName, false) {
					logging.Registry("Seeded mapping [%s] %s -> %s (group %s)",
						appType, expected, declaredName, group.Name)
				}
			}
		}
	}
}

// Resolve is a pure lookup of the actual name for an expected one
// within an app-type bucket. The second return reports existence.
func (r *Registry) Resolve(appType, expected string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if bucket, ok := r.buckets[appType]; ok {
		if m, ok := bucket[expected]; ok {
			return m.Actual, true
		}
	}
	return "", false
}

// IsDeclared reports whether a name was registered as declared in the
// given app-type bucket.
func (r *Registry) IsDeclared(appType, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.declared[appType][name]
}

// ObserveSuccess reinforces a mapping after the associated fix was
// accepted. A first observation creates the mapping; repeats bump its
// hit count. An observation that contradicts an existing mapping in the
// same bucket is logged and ignored - resolution stays stable within a
// bucket.
func (r *Registry) ObserveSuccess(appType, expected, actual string) {
	r.mu.Lock()
	changed := false
	if bucket, ok := r.buckets[appType]; ok {
		if m, ok := bucket[expected]; ok {
			if m.Actual == actual {
				m.Hits++
				changed = true
			} else {
				logging.Registry("Ignoring contradictory observation [%s] %s -> %s (have %s)",
					appType, expected, actual, m.Actual)
			}
			r.mu.Unlock()
			if changed && r.snapshotPath != "" {
				if err := r.Save(); err != nil {
					logging.Get(logging.CategoryRegistry).Warn("snapshot save failed: %v", err)
				}
			}
			return
		}
	}
	r.putLocked(appType, expected, actual, true)
	r.mu.Unlock()

	logging.Registry("Learned mapping [%s] %s -> %s", appType, expected, actual)
	if r.snapshotPath != "" {
		if err := r.Save(); err != nil {
			logging.Get(logging.CategoryRegistry).Warn("snapshot save failed: %v", err)
		}
	}
}

// Mappings returns a copy of the bucket's mappings.
func (r *Registry) Mappings(appType string) []Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.buckets[appType]
	out := make([]Mapping, 0, len(bucket))
	for _, m := range bucket {
		out = append(out, *m)
	}
	return out
}

// putLocked inserts a mapping if absent. Caller holds the write lock.
func (r *Registry) putLocked(appType, expected, actual string, verified bool) bool {
	bucket := r.buckets[appType]
	if bucket == nil {
		bucket = make(map[string]*Mapping)
		r.buckets[appType] = bucket
	}
	if _, exists := bucket[expected]; exists {
		return false
	}
	hits := 0
	if verified {
		hits = 1
	}
	bucket[expected] = &Mapping{
		Expected:        expected,
		Actual:          actual,
		DiscoveredInApp: appType,
		Hits:            hits,
	}
	return true
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// snapshot is the on-disk shape: bucket -> expected -> actual.
type snapshot map[string]map[string]string

// Load merges the snapshot file into the registry. Entries already in
// memory win; the file never overrides learned state.
func (r *Registry) Load() error {
	if r.snapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(r.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read registry snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse registry snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	merged := 0
	for appType, entries := range snap {
		for expected, actual := range entries {
			if r.putLocked(appType, expected, actual, false) {
				merged++
			}
		}
	}
	logging.Registry("Loaded snapshot %s (%d mappings merged)", r.snapshotPath, merged)
	return nil
}

// Save writes the snapshot, merging with whatever is already on disk so
// concurrent writers from other processes are never truncated away. The
// write goes through a temp file and rename.
func (r *Registry) Save() error {
	if r.snapshotPath == "" {
		return nil
	}

	// Merge disk state under the write lock so a concurrent in-process
	// Save cannot interleave.
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(snapshot)
	if data, err := os.ReadFile(r.snapshotPath); err == nil {
		// Best effort: an unreadable snapshot is rebuilt from memory.
		_ = json.Unmarshal(data, &snap)
	}
	for appType, bucket := range r.buckets {
		entries := snap[appType]
		if entries == nil {
			entries = make(map[string]string)
			snap[appType] = entries
		}
		for expected, m := range bucket {
			entries[expected] = m.Actual
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.snapshotPath), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := r.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.snapshotPath); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
