// Package cli provides Cobra command definitions for scopectl.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/scopectl/internal/config"
	"github.com/chazuruo/scopectl/internal/mount"
)

// InitOptions contains the options for the init command.
type InitOptions struct {
	ConfigPath string
	Force      bool

	// Scriptable/flag options for --no-tui mode
	Port      string
	BaudRate  int
	DataBits  int
	StopBits  float64
	Parity    string
	Latitude  float64
	Longitude float64
	Height    float64
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a scopectl configuration",
		Long: `Create a scopectl configuration file.

The init command asks for:
- the serial device the mount is attached to
- the line settings (baud rate, parity)
- the observing site (latitude, longitude, height)

Use --no-tui with flags for scripted setup.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath == "" {
				opts.ConfigPath = config.DefaultConfigPath()
			}
			if IsNoTUI() {
				return runInitNonInteractive(cmd.OutOrStdout(), opts)
			}
			return runInitInteractive(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file path (default ~/.config/scopectl/config.toml)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&opts.Port, "port", defaults.Serial.Port, "serial device")
	cmd.Flags().IntVar(&opts.BaudRate, "baud-rate", defaults.Serial.BaudRate, "baud rate")
	cmd.Flags().IntVar(&opts.DataBits, "data-bits", defaults.Serial.DataBits, "data bits (5-8)")
	cmd.Flags().Float64Var(&opts.StopBits, "stop-bits", defaults.Serial.StopBits, "stop bits (1, 1.5 or 2)")
	cmd.Flags().StringVar(&opts.Parity, "parity", defaults.Serial.Parity, "parity (none, even, odd)")
	cmd.Flags().Float64Var(&opts.Latitude, "latitude", 0, "site latitude in degrees, north positive")
	cmd.Flags().Float64Var(&opts.Longitude, "longitude", 0, "site longitude in degrees, east positive")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "site height in metres")

	return cmd
}

// runInitInteractive runs the init wizard with TUI.
func runInitInteractive(w io.Writer, opts *InitOptions) error {
	var (
		latitude  = strconv.FormatFloat(opts.Latitude, 'f', -1, 64)
		longitude = strconv.FormatFloat(opts.Longitude, 'f', -1, 64)
		height    = strconv.FormatFloat(opts.Height, 'f', -1, 64)
	)

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Serial port").
				Description("Device the mount is attached to").
				Value(&opts.Port).
				Validate(func(s string) error {
					if !mount.PortNameValid(runtime.GOOS, s) {
						return fmt.Errorf("unexpected device name for %s", runtime.GOOS)
					}
					return nil
				}),
			huh.NewSelect[int]().
				Title("Baud rate").
				Options(huh.NewOptions(9600, 19200, 38400, 57600, 115200, 230400)...).
				Value(&opts.BaudRate),
			huh.NewSelect[string]().
				Title("Parity").
				Options(
					huh.NewOption("None", "none"),
					huh.NewOption("Even", "even"),
					huh.NewOption("Odd", "odd"),
				).
				Value(&opts.Parity),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Latitude").
				Description("Degrees, north positive").
				Value(&latitude).
				Validate(validateFloat),
			huh.NewInput().
				Title("Longitude").
				Description("Degrees, east positive").
				Value(&longitude).
				Validate(validateFloat),
			huh.NewInput().
				Title("Height").
				Description("Metres above sea level").
				Value(&height).
				Validate(validateFloat),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	opts.Latitude, _ = strconv.ParseFloat(latitude, 64)
	opts.Longitude, _ = strconv.ParseFloat(longitude, 64)
	opts.Height, _ = strconv.ParseFloat(height, 64)

	return writeInitConfig(w, opts)
}

// runInitNonInteractive builds the config from flags only.
func runInitNonInteractive(w io.Writer, opts *InitOptions) error {
	return writeInitConfig(w, opts)
}

func writeInitConfig(w io.Writer, opts *InitOptions) error {
	if _, err := os.Stat(opts.ConfigPath); err == nil && !opts.Force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", opts.ConfigPath)
	}

	cfg := buildConfig(opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := config.Write(opts.ConfigPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓ wrote"), opts.ConfigPath)
	return nil
}

func buildConfig(opts *InitOptions) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Serial = mount.SerialConfig{
		Port:     opts.Port,
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: opts.StopBits,
		Parity:   opts.Parity,
	}
	cfg.Site = config.SiteConfig{
		Latitude:  opts.Latitude,
		Longitude: opts.Longitude,
		Height:    opts.Height,
	}
	return cfg
}

func validateFloat(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	return nil
}
