package processing

import (
	"github.com/jjckrbbt/pharmatrade/internal/yamldir"
)

// ConfigLoader holds the import configurations found under a directory,
// keyed by import type.
type ConfigLoader struct {
	configs map[string]ImportConfig
}

// NewConfigLoader loads and validates every YAML import config under
// configPath. Two files declaring the same import_type are rejected.
func NewConfigLoader(configPath string) (*ConfigLoader, error) {
	configs, err := yamldir.Load[ImportConfig](configPath, "import config", "import_type")
	if err != nil {
		return nil, err
	}
	return &ConfigLoader{configs: configs}, nil
}

// GetConfig retrieves a validated configuration by its import type.
func (l *ConfigLoader) GetConfig(importType string) (ImportConfig, bool) {
	config, ok := l.configs[importType]
	return config, ok
}

// ImportTypes lists the loaded import types in order.
func (l *ConfigLoader) ImportTypes() []string {
	return yamldir.Keys(l.configs)
}
