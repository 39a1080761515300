package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors the optional config.toml. Every field may be omitted.
type FileConfig struct {
	Discord struct {
		ClientID      string `toml:"client_id"`
		FallbackImage string `toml:"fallback_image"`
	} `toml:"discord"`
	Source struct {
		Strategy      string   `toml:"strategy"`
		TitlePatterns []string `toml:"title_patterns"`
	} `toml:"source"`
	Options struct {
		UpdateIntervalSeconds int    `toml:"update_interval_seconds"`
		IOTimeoutSeconds      int    `toml:"io_timeout_seconds"`
		MaxRetries            int    `toml:"max_retries"`
		RetryDelaySeconds     int    `toml:"retry_delay_seconds"`
		LogLevel              string `toml:"log_level"`
		ArtworkCacheSize      int    `toml:"artwork_cache_size"`
	} `toml:"options"`
	Youtube struct {
		APIKey      string `toml:"api_key"`
		HeadersFile string `toml:"headers_file"`
	} `toml:"youtube"`
	Spotify struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURL  string `toml:"redirect_url"`
		TokenFile    string `toml:"token_file"`
	} `toml:"spotify"`
	Status struct {
		Port string `toml:"port"`
	} `toml:"status"`
}

// LoadFile reads the TOML config at path, or at the default location when path
// is empty. A missing file at the default location is not an error.
func LoadFile(path string) (*FileConfig, string, error) {
	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return &FileConfig{}, "", nil
		}
		path = filepath.Join(dir, "musicpresence", "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &FileConfig{}, path, nil
		}
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var file FileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	return &file, path, nil
}
