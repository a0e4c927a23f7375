// Package config provides configuration management for scopectl.
//
// The configuration is stored in TOML format (YAML is also accepted) and
// supports validation and default values for all fields.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
	"github.com/chazuruo/scopectl/internal/logging"
	"github.com/chazuruo/scopectl/internal/mount"
)

// Config is the top-level configuration struct for scopectl.
type Config struct {
	Mount  MountConfig        `toml:"mount" yaml:"mount"`
	Serial mount.SerialConfig `toml:"serial" yaml:"serial"`
	Site   SiteConfig         `toml:"site" yaml:"site"`
	Log    LogConfig          `toml:"log" yaml:"log"`
}

// MountConfig selects the mount driver.
type MountConfig struct {
	// Type is the driver name. Valid values: "ioptron".
	Type string `toml:"type" yaml:"type"`

	// ReadTimeout bounds each serial read, as a Go duration string (e.g. "2s").
	ReadTimeout string `toml:"read_timeout" yaml:"read_timeout"`
}

// SiteConfig is the observing site, in degrees and metres.
type SiteConfig struct {
	// Latitude is north-positive, -90 to 90.
	Latitude float64 `toml:"latitude" yaml:"latitude"`

	// Longitude is east-positive, -180 to 180.
	Longitude float64 `toml:"longitude" yaml:"longitude"`

	// Height is metres above the reference ellipsoid.
	Height float64 `toml:"height" yaml:"height"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// Format is one of: text, json.
	Format string `toml:"format" yaml:"format"`
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	return &Config{
		Mount: MountConfig{
			Type:        mount.KindIoptron,
			ReadTimeout: mount.DefaultReadTimeout.String(),
		},
		Serial: mount.SerialConfig{
			Port:     DefaultPort(runtime.GOOS),
			BaudRate: 115200,
			DataBits: 8,
			StopBits: 1,
			Parity:   "none",
		},
		Site: SiteConfig{},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// DefaultPort returns a plausible USB serial device name for goos.
func DefaultPort(goos string) string {
	switch goos {
	case "windows":
		return "COM1"
	case "darwin":
		return "/dev/cu.usbserial"
	}
	return "/dev/ttyUSB0"
}

// Validate checks the configuration for valid values. Every problem is
// reported in a single *errors.ValidationError.
func (c *Config) Validate() error {
	_, serialProblems := mount.ValidateConfig(c.Serial.Raw())
	return c.validateWith(serialProblems)
}

// validateWith checks every section except serial, whose problems are
// supplied by the caller, and reports them all in section order.
func (c *Config) validateWith(serialProblems []string) error {
	var problems []string

	// Mount section
	validType := false
	for _, k := range mount.Kinds() {
		if c.Mount.Type == k {
			validType = true
		}
	}
	if !validType {
		problems = append(problems, fmt.Sprintf("mount.type must be one of: %s; got %q",
			strings.Join(mount.Kinds(), ", "), c.Mount.Type))
	}
	if c.Mount.ReadTimeout != "" {
		if d, err := time.ParseDuration(c.Mount.ReadTimeout); err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("mount.read_timeout must be a positive duration; got %q", c.Mount.ReadTimeout))
		}
	}

	// Serial section
	problems = append(problems, serialProblems...)

	// Site section
	if c.Site.Latitude < -90 || c.Site.Latitude > 90 {
		problems = append(problems, fmt.Sprintf("site.latitude must be between -90 and 90; got %v", c.Site.Latitude))
	}
	if c.Site.Longitude < -180 || c.Site.Longitude > 180 {
		problems = append(problems, fmt.Sprintf("site.longitude must be between -180 and 180; got %v", c.Site.Longitude))
	}

	// Log section
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("log.format must be one of: text, json; got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return &scopeerrors.ValidationError{Problems: problems}
	}
	return nil
}

// ReadTimeout returns the parsed mount.read_timeout, or the driver default
// when unset or unparsable.
func (c *Config) ReadTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Mount.ReadTimeout); err == nil && d > 0 {
		return d
	}
	return mount.DefaultReadTimeout
}

// Location returns the configured site as a mount.Location.
func (c *Config) Location() mount.Location {
	return mount.NewLocation(c.Site.Latitude, c.Site.Longitude, c.Site.Height)
}
