// Package config provides configuration management for scopectl.
//
// This file contains config loading functionality including:
// - XDG config path detection
// - TOML and YAML file parsing
// - Environment variable overrides
// - Validation
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
	"github.com/chazuruo/scopectl/internal/mount"
)

// fileConfig mirrors Config as it is read from disk. The serial section
// stays loosely typed so mount.ValidateConfig can report wrongly typed
// values instead of failing the decode.
type fileConfig struct {
	Mount  MountConfig    `toml:"mount" yaml:"mount"`
	Serial map[string]any `toml:"serial" yaml:"serial"`
	Site   SiteConfig     `toml:"site" yaml:"site"`
	Log    LogConfig      `toml:"log" yaml:"log"`
}

// DetectConfigPath searches for a config file using XDG standard paths.
// Returns the first config file found, or empty string if none exists.
//
// Search order:
// 1. ~/.config/scopectl/config.toml
// 2. ~/.config/scopectl/config.yaml
func DetectConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	for _, name := range []string{"config.toml", "config.yaml"} {
		configPath := filepath.Join(homeDir, ".config", "scopectl", name)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

// DefaultConfigPath is where init writes a new config.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(homeDir, ".config", "scopectl", "config.toml")
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error wrapping ErrNotFound.
// After loading, applies environment variable overrides and validates.
//
// Unlike the other sections, [serial] is not filled from defaults: every
// serial key must be present in the file or the environment.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &scopeerrors.ConfigError{Path: path, Err: scopeerrors.ErrNotFound}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &scopeerrors.ConfigError{Path: path, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
	}

	defaults := DefaultConfig()
	fc := &fileConfig{
		Mount: defaults.Mount,
		Site:  defaults.Site,
		Log:   defaults.Log,
	}

	if err := decode(path, data, fc); err != nil {
		return nil, &scopeerrors.ConfigError{Path: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}

	return resolve(path, fc)
}

// LoadWithDefaults attempts to load a config from XDG standard paths.
// If no config file is found, returns the defaults with environment
// overrides applied.
func LoadWithDefaults() (*Config, error) {
	configPath := DetectConfigPath()
	if configPath == "" {
		defaults := DefaultConfig()
		return resolve("", &fileConfig{
			Mount:  defaults.Mount,
			Serial: defaults.Serial.Raw()["serial"].(map[string]any),
			Site:   defaults.Site,
			Log:    defaults.Log,
		})
	}

	return Load(configPath)
}

// LoadFrom loads path when set and falls back to LoadWithDefaults otherwise.
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	return LoadWithDefaults()
}

func decode(path string, data []byte, fc *fileConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, fc)
	}
	return toml.Unmarshal(data, fc)
}

// resolve applies overrides to fc, validates it and converts it to a Config.
func resolve(path string, fc *fileConfig) (*Config, error) {
	applyEnvOverrides(fc)

	raw := map[string]any{}
	if fc.Serial != nil {
		raw["serial"] = fc.Serial
	}
	// The raw section is checked instead of the typed one so that wrongly
	// typed values are reported as they were written.
	var serialProblems []string
	serialCfg, err := mount.DecodeSerialConfig(raw)
	if err != nil {
		ve, ok := scopeerrors.AsValidationError(err)
		if !ok {
			return nil, &scopeerrors.ConfigError{Path: path, Err: err}
		}
		serialProblems = ve.Problems
	}

	cfg := &Config{
		Mount:  fc.Mount,
		Serial: serialCfg,
		Site:   fc.Site,
		Log:    fc.Log,
	}

	if err := cfg.validateWith(serialProblems); err != nil {
		return nil, &scopeerrors.ConfigError{Path: path, Err: err}
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: SCOPECTL_<SECTION>_<FIELD>
//
// Examples:
// - SCOPECTL_SERIAL_PORT overrides [serial].port
// - SCOPECTL_SITE_LATITUDE overrides [site].latitude
// - SCOPECTL_LOG_LEVEL overrides [log].level
//
// Numeric serial values that fail to parse are kept as strings so that
// validation reports them.
func applyEnvOverrides(fc *fileConfig) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*target = val
		}
	}

	applyFloat := func(key string, target *float64) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				*target = f
			}
		}
	}

	applySerial := func(field string, parse func(string) (any, error)) {
		val, ok := os.LookupEnv("SCOPECTL_SERIAL_" + strings.ToUpper(field))
		if !ok || val == "" {
			return
		}
		if fc.Serial == nil {
			fc.Serial = map[string]any{}
		}
		if parse == nil {
			fc.Serial[field] = val
			return
		}
		if v, err := parse(val); err == nil {
			fc.Serial[field] = v
		} else {
			fc.Serial[field] = val
		}
	}
	parseInt := func(s string) (any, error) { return strconv.Atoi(s) }
	parseFloat := func(s string) (any, error) { return strconv.ParseFloat(s, 64) }

	// Mount section
	applyString("SCOPECTL_MOUNT_TYPE", &fc.Mount.Type)
	applyString("SCOPECTL_MOUNT_READ_TIMEOUT", &fc.Mount.ReadTimeout)

	// Serial section
	applySerial("port", nil)
	applySerial("baud_rate", parseInt)
	applySerial("data_bits", parseInt)
	applySerial("stop_bits", parseFloat)
	applySerial("parity", nil)

	// Site section
	applyFloat("SCOPECTL_SITE_LATITUDE", &fc.Site.Latitude)
	applyFloat("SCOPECTL_SITE_LONGITUDE", &fc.Site.Longitude)
	applyFloat("SCOPECTL_SITE_HEIGHT", &fc.Site.Height)

	// Log section
	applyString("SCOPECTL_LOG_LEVEL", &fc.Log.Level)
	applyString("SCOPECTL_LOG_FORMAT", &fc.Log.Format)
}
