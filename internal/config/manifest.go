package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Manifest is a CLI/embedder-facing declaration of the catalog set and
// options in one YAML document, letting a caller avoid wiring each
// Option func by hand.
type Manifest struct {
	CatalogFiles     []string `yaml:"catalog_files"`
	CatalogAdditions []string `yaml:"catalog_additions"`
	Prefer           string   `yaml:"prefer"`
	AlwaysResolve    bool     `yaml:"always_resolve"`
	UriForSystem     bool     `yaml:"uri_for_system"`
}

// LoadManifest reads and parses a YAML manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Options converts the manifest into Option funcs, in the same order
// Load applies explicit options: after defaults/property-file/env.
func (m Manifest) Options() []Option {
	var opts []Option
	if len(m.CatalogFiles) > 0 {
		opts = append(opts, WithCatalogFiles(m.CatalogFiles...))
	}
	if len(m.CatalogAdditions) > 0 {
		opts = append(opts, WithCatalogAdditions(m.CatalogAdditions...))
	}
	if m.Prefer != "" {
		opts = append(opts, WithPrefer(m.Prefer))
	}
	if m.AlwaysResolve {
		opts = append(opts, WithAlwaysResolve(true))
	}
	if m.UriForSystem {
		opts = append(opts, func(c *Config) { c.UriForSystem = true })
	}
	return opts
}
