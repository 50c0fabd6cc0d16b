package param

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PresetStore persists named parameter snapshots as YAML files in a
// directory. A preset maps the canonical "group/name" address of each
// parameter to its value at save time.
type PresetStore struct {
	dir string
}

// NewPresetStore creates a store rooted at dir, creating it if needed.
func NewPresetStore(dir string) (*PresetStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("preset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preset directory: %w", err)
	}
	return &PresetStore{dir: dir}, nil
}

func (s *PresetStore) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

// Save writes the current values of params as preset name.
func (s *PresetStore) Save(name string, params []Meta) error {
	if name == "" {
		return fmt.Errorf("preset name is required")
	}
	snapshot := make(map[string]any, len(params))
	for _, p := range params {
		snapshot[FullName(p)] = p.Value()
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode preset %q: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write preset %q: %w", name, err)
	}
	return nil
}

// Load applies preset name to params. Parameters missing from the preset
// keep their current value; preset entries without a matching parameter are
// ignored. Type mismatches are reported but do not stop the remaining
// assignments.
func (s *PresetStore) Load(name string, params []Meta) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("read preset %q: %w", name, err)
	}

	var snapshot map[string]any
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode preset %q: %w", name, err)
	}

	byName := make(map[string]Meta, len(params))
	for _, p := range params {
		byName[FullName(p)] = p
	}

	var failed []string
	for key, value := range snapshot {
		p, ok := byName[key]
		if !ok {
			continue
		}
		if err := p.SetValue(value); err != nil {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("preset %q: failed to apply %s", name, strings.Join(failed, ", "))
	}
	return nil
}

// List returns the names of all stored presets, sorted.
func (s *PresetStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes preset name.
func (s *PresetStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	return nil
}
