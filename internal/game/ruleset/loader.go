package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromDir reads all .yaml files in dir and parses each as a RuleSet.
// Files are processed in lexical order so overrides are deterministic.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed rule sets (may be an empty slice) or a
// non-nil error. Every returned rule set passes Validate.
func LoadFromDir(dir string) ([]*RuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)

	sets := make([]*RuleSet, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var rs RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parsing ruleset file %s: %w", path, err)
		}
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("validating ruleset file %s: %w", path, err)
		}
		sets = append(sets, &rs)
	}
	return sets, nil
}

// LoadInto loads rule sets from dir and registers each into reg.
//
// Precondition: reg must be non-nil.
// Postcondition: All rule sets in dir are registered, or an error is
// returned after zero or more registrations.
func LoadInto(reg *Registry, dir string) error {
	sets, err := LoadFromDir(dir)
	if err != nil {
		return err
	}
	for _, rs := range sets {
		if err := reg.Register(rs); err != nil {
			return err
		}
	}
	return nil
}
