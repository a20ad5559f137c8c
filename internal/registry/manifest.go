package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk form of an endpoint-only registration.
type manifest struct {
	Registration `yaml:",inline"`
	Enabled      *bool `yaml:"enabled"`
}

// loadManifests reads every *.yaml / *.yml file in dir. Files whose name
// starts with "_" or "." are private and skipped.
func loadManifests(dir string, log zerolog.Logger) ([]Registration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []Registration
	for _, name := range names {
		reg, err := readManifest(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping api manifest")
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

func readManifest(path string) (Registration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registration{}, err
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Registration{}, fmt.Errorf("invalid yaml: %w", err)
	}

	reg := m.Registration
	if reg.ID == "" {
		base := filepath.Base(path)
		reg.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	reg.Enabled = m.Enabled == nil || *m.Enabled
	return reg, nil
}
