package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileHeader is prepended to every config file InitConfig writes.
const configFileHeader = "# objmapper configuration file\n" +
	"# Generated by `objmapperd init`. Precedence: CLI flags > OBJM_*\n" +
	"# environment variables > this file > defaults.\n\n"

// InitConfig scaffolds a default configuration file at the default
// location (`objmapperd init`). It also creates the backing and cache
// directories so `objmapperd start` has somewhere to put objects.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath scaffolds a default configuration file at an
// explicit path, for `objmapperd init --config <path>`.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	for _, dir := range []string{cfg.Backing.Dir, cfg.Backing.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	data := append([]byte(configFileHeader), body...)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}
