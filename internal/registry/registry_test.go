package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSeedsMappingsFromDeclaredNames(t *testing.T) {
	r := New("", DefaultSeedGroups())

	r.Register("recipe-app", []string{"AppErrorView", "RecipeListView", "AppErrorViewExtension"})

	actual, ok := r.Resolve("recipe-app", "ErrorView")
	require.True(t, ok, "expected seeded mapping for ErrorView")
	assert.Equal(t, "AppErrorView", actual)

	// Suffix match is exact: the extension type must not seed anything.
	_, ok = r.Resolve("recipe-app", "ErrorViewExtension")
	assert.False(t, ok)
}

func TestResolveIsBucketScoped(t *testing.T) {
	r := New("", nil)
	r.ObserveSuccess("app-a", "ErrorView", "AppErrorView")

	_, ok := r.Resolve("app-b", "ErrorView")
	assert.False(t, ok, "mapping leaked across app-type buckets")
}

func TestObserveSuccessIsMonotonic(t *testing.T) {
	r := New("", nil)

	r.ObserveSuccess("app", "ErrorView", "AppErrorView")
	r.ObserveSuccess("app", "ErrorView", "OtherErrorView") // contradiction, ignored
	r.ObserveSuccess("app", "ErrorView", "AppErrorView")   // reinforcement

	actual, ok := r.Resolve("app", "ErrorView")
	require.True(t, ok)
	assert.Equal(t, "AppErrorView", actual, "resolution flipped within a bucket")

	mappings := r.Mappings("app")
	require.Len(t, mappings, 1)
	assert.Equal(t, 2, mappings[0].Hits)

	// A different bucket may learn a different actual.
	r.ObserveSuccess("other-app", "ErrorView", "OtherErrorView")
	actual, ok = r.Resolve("other-app", "ErrorView")
	require.True(t, ok)
	assert.Equal(t, "OtherErrorView", actual)
}

func TestSnapshotRoundTripMerges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identifiers.json")

	first := New(path, nil)
	first.ObserveSuccess("app", "ErrorView", "AppErrorView")
	require.NoError(t, first.Save())

	// A second process learns a different mapping and saves; the first
	// one's entry must survive the merge.
	second := New(path, nil)
	require.NoError(t, second.Load())
	second.ObserveSuccess("app", "LoadingView", "AppLoadingView")
	require.NoError(t, second.Save())

	third := New(path, nil)
	require.NoError(t, third.Load())

	actual, ok := third.Resolve("app", "ErrorView")
	require.True(t, ok)
	assert.Equal(t, "AppErrorView", actual)
	actual, ok = third.Resolve("app", "LoadingView")
	require.True(t, ok)
	assert.Equal(t, "AppLoadingView", actual)
}

func TestLoadMissingSnapshotIsNoop(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.NoError(t, r.Load())
}

func TestLoadSeedGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.yaml")
	content := `groups:
  - name: error-display-views
    expected: [ErrorView]
    suffix: ErrorView
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	groups, err := LoadSeedGroups(path)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "error-display-views", groups[0].Name)
	assert.Equal(t, []string{"ErrorView"}, groups[0].Expected)
}
