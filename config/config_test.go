package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetUpdateInterval(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want time.Duration
	}{
		{"empty", "", 15 * time.Second},
		{"invalid", "abc", 15 * time.Second},
		{"zero", "0", 15 * time.Second},
		{"negative", "-1", 15 * time.Second},
		{"below_min", "2", 5 * time.Second},
		{"valid", "30", 30 * time.Second},
		{"over", "900", 300 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UPDATE_INTERVAL_SECONDS", tt.env)
			if got := getSeconds("UPDATE_INTERVAL_SECONDS", 0, 15, 5, 300); got != tt.want {
				t.Errorf("getSeconds() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestGetMaxRetries(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		fromFile int
		want     int
	}{
		{"empty", "", 0, 5},
		{"invalid", "foo", 3, 5},
		{"file value", "", 3, 3},
		{"env wins", "7", 3, 7},
		{"min", "1", 0, 1},
		{"over", "50", 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAX_RETRIES", tt.env)
			if got := getInt("MAX_RETRIES", tt.fromFile, 5, 1, 20); got != tt.want {
				t.Errorf("getInt() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetStrategy(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		fromFile string
		want     string
	}{
		{"default", "", "", StrategyWindow},
		{"env", "spotify", "", StrategySpotify},
		{"case insensitive", "YTMusic", "", StrategyYTMusic},
		{"file", "", "ytmusic", StrategyYTMusic},
		{"unknown falls back", "winamp", "", StrategyWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRACK_SOURCE", tt.env)
			if got := getStrategy(tt.fromFile); got != tt.want {
				t.Errorf("getStrategy() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("DISCORD_CLIENT_ID", "")
	t.Setenv("CLIENT_ID", "")
	cfg := build(&FileConfig{})
	if err := Validate(cfg); !errors.Is(err, ErrFatalConfig) {
		t.Errorf("Validate() = %v; want ErrFatalConfig", err)
	}

	t.Setenv("CLIENT_ID", "123456789")
	cfg = build(&FileConfig{})
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
	if cfg.Discord.ClientID != "123456789" {
		t.Errorf("ClientID = %q; want alias CLIENT_ID to be used", cfg.Discord.ClientID)
	}

	if err := Validate(nil); !errors.Is(err, ErrFatalConfig) {
		t.Errorf("Validate(nil) = %v; want ErrFatalConfig", err)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[discord]
client_id = "from-file"

[source]
strategy = "ytmusic"
title_patterns = ['^(?P<title>.+) :: (?P<artist>.+)$']

[options]
update_interval_seconds = 20
max_retries = 3
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	file, _, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	t.Setenv("DISCORD_CLIENT_ID", "")
	t.Setenv("CLIENT_ID", "")
	t.Setenv("TRACK_SOURCE", "")
	t.Setenv("UPDATE_INTERVAL_SECONDS", "")
	t.Setenv("MAX_RETRIES", "4")

	cfg := build(file)
	if cfg.Discord.ClientID != "from-file" {
		t.Errorf("ClientID = %q; want from-file", cfg.Discord.ClientID)
	}
	if cfg.Source.Strategy != StrategyYTMusic {
		t.Errorf("Strategy = %q; want ytmusic", cfg.Source.Strategy)
	}
	if len(cfg.Source.TitlePatterns) != 1 {
		t.Errorf("TitlePatterns = %v; want one pattern", cfg.Source.TitlePatterns)
	}
	if cfg.Options.UpdateInterval != 20*time.Second {
		t.Errorf("UpdateInterval = %v; want 20s", cfg.Options.UpdateInterval)
	}
	if cfg.Options.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d; want env override 4", cfg.Options.MaxRetries)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadFile() with an explicit missing path should fail")
	}
}
