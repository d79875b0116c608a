package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedGroup describes a family of identifiers that generators commonly
// rename with an app-specific prefix. When Register sees a declared
// name carrying the group's suffix, every expected name in the group is
// pre-mapped to it.
type SeedGroup struct {
	Name     string   `yaml:"name"`
	Expected []string `yaml:"expected"`
	Suffix   string   `yaml:"suffix"`
}

// seedFile is the YAML shape of a seed group file.
type seedFile struct {
	Groups []SeedGroup `yaml:"groups"`
}

// matches reports whether a declared name belongs to this group.
func (g SeedGroup) matches(declared string) bool {
	return g.Suffix != "" && strings.HasSuffix(declared, g.Suffix)
}

// DefaultSeedGroups covers the renamings seen most often in generated
// app trees: error-display views and root content views picking up the
// app name as a prefix.
func DefaultSeedGroups() []SeedGroup {
	return []SeedGroup{
		{
			Name:     "error-display-views",
			Expected: []string{"ErrorView", "ErrorScreen"},
			Suffix:   "ErrorView",
		},
		{
			Name:     "loading-views",
			Expected: []string{"LoadingView", "ProgressScreen"},
			Suffix:   "LoadingView",
		},
		{
			Name:     "settings-views",
			Expected: []string{"SettingsView"},
			Suffix:   "SettingsView",
		},
	}
}

// LoadSeedGroups reads seed groups from a YAML file.
func LoadSeedGroups(path string) ([]SeedGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed groups: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed groups: %w", err)
	}
	return f.Groups, nil
}
