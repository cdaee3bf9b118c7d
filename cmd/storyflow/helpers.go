package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"storyflow/internal/store"
)

// openStore opens the configured SQLite store.
func openStore() (store.Store, error) {
	path := rootFlags.dbPath
	if path == "" {
		path = store.DefaultDBPath
	}
	return store.Open(path)
}

// loadYAML reads and unmarshals a YAML file into out.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
