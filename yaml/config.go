// Package yaml loads application configuration from YAML files.
package yaml

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akowalczyk/ragsync"
)

// LoadConfig reads, parses, and defaults a configuration file. Validation
// is left to callers since commands differ in what they require.
func LoadConfig(path string) (*ragsync.Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ragsync.Errorf(ragsync.ENOTFOUND, "config file not found: %s", path)
	}
	if err != nil {
		return nil, err
	}

	var cfg ragsync.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ragsync.Errorf(ragsync.EINVALID, "parse config %s: %v", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
