package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the optional on-disk settings. Every field has a flag
// equivalent; flags win over the file, the file wins over defaults.
type Config struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	Markdown    bool    `toml:"markdown"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".llm", "config.toml")
}

// loadConfig reads the TOML config file at path. A missing file at the
// default location is not an error; a missing file at an explicitly
// requested path is.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := Config{Markdown: true}
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
