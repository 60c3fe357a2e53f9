// internal/catalog/loader.go
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// CatalogConfig is the on-disk shape of configs/plans.yaml
type CatalogConfig struct {
	Version string `yaml:"version"`
	Plans   []Plan `yaml:"plans"`
}

// LoadFile reads a catalog override from a YAML file. The file replaces the
// built-in table wholesale; partial overrides are not supported.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	c, err := New(cfg.Plans)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return c, nil
}
