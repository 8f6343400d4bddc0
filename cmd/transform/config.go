package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	transform "github.com/filestack/transformations-ui-ios-sub001"
)

// config holds the defaults the flags fall back to.
type config struct {
	Workers      int
	HistoryLimit int
	CacheSize    int
	Quality      int
	LogLevel     string
	Cascade      string
	Assets       string
	Store        string
}

const configFile = "config.toml"

func defaultConfig() config {
	return config{
		Workers:      runtime.NumCPU(),
		HistoryLimit: transform.DefaultHistoryLimit,
		CacheSize:    transform.DefaultCacheSize,
		Quality:      transform.DefaultQuality,
		LogLevel:     "warn",
	}
}

// readConfig loads the configuration file at path, or the one in the user
// config directory when path is empty. A missing default file is not an error.
func readConfig(path string) (config, error) {
	conf := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir(), configFile)
	}
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return conf, nil
		}
		return conf, fmt.Errorf("couldn't read config file: %w", err)
	}
	return conf, nil
}

func writeConfig(w io.Writer, conf config) error {
	if err := toml.NewEncoder(w).Encode(conf); err != nil {
		return fmt.Errorf("couldn't write config file: %w", err)
	}
	return nil
}

func configDir() string {
	return filepath.Join(xdgOrFallback("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "transform")
}

func xdgOrFallback(xdg string, fallback string) string {
	if dir := os.Getenv(xdg); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	return fallback
}

func (c config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelWarn
	}
	return l
}
