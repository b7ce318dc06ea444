package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := os.ReadFile(filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	out.configDir = path

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigurationName, err)
	}
	return &out, nil
}

// Initialize writes the default configuration into the directory, creating it
// if needed. An existing config.yaml is left untouched.
func Initialize(path string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	configPath := filepath.Join(path, ConfigurationName)
	if _, err := os.Stat(configPath); err == nil {
		logger.Printf("%s already exists, skipping", configPath)
		return Load(path)
	}

	logger.Printf("writing %s", configPath)
	if err := os.WriteFile(configPath, defaultConfigData, 0600); err != nil {
		return nil, err
	}

	return Load(path)
}
