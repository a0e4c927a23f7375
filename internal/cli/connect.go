// Package cli provides Cobra command definitions for scopectl.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/scopectl/internal/config"
	"github.com/chazuruo/scopectl/internal/mount"
)

// openPort opens serial devices for connect. Tests replace it.
var openPort mount.Opener = mount.OpenSerial

// ConnectOptions contains the options for the connect command.
type ConnectOptions struct {
	ConfigPath   string
	Timeout      time.Duration
	PolarAligned bool
	JSON         bool
}

// ConnectReport summarises a connection check.
type ConnectReport struct {
	Port         string                 `json:"port"`
	Connected    bool                   `json:"connected"`
	PolarAligned bool                   `json:"polar_aligned"`
	Latitude     float64                `json:"latitude"`
	Longitude    float64                `json:"longitude"`
	Height       float64                `json:"height"`
	Info         *mount.IoptronInfo     `json:"info,omitempty"`
	Firmware     *mount.IoptronFirmware `json:"firmware,omitempty"`
}

// NewConnectCommand creates the connect command.
func NewConnectCommand() *cobra.Command {
	opts := &ConnectOptions{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the mount and report what it is",
		Long: `Open the configured serial port, identify the mount, and close the port.

For iOptron mounts the model and firmware dates are queried.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file path")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "overall time limit")
	cmd.Flags().BoolVar(&opts.PolarAligned, "polar-aligned", false, "mark the mount as polar aligned")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runConnect(ctx context.Context, out, errOut io.Writer, opts *ConnectOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg, errOut)
	if err != nil {
		return err
	}

	m, err := mount.New(cfg.Mount.Type, cfg.Serial,
		mount.WithSite(cfg.Location()),
		mount.WithReadTimeout(cfg.ReadTimeout()),
		mount.WithOpener(openPort),
		mount.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create mount: %w", err)
	}
	m.SetPolarAligned(opts.PolarAligned)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := m.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	pos := m.Position()
	report := ConnectReport{
		Port:         cfg.Serial.Port,
		Connected:    m.Connected(),
		PolarAligned: m.PolarAligned(),
		Latitude:     pos.Latitude(),
		Longitude:    pos.Longitude(),
		Height:       pos.Height,
	}

	if im, ok := m.(*mount.IoptronMount); ok {
		info, err := im.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to identify mount: %w", err)
		}
		report.Info = &info

		fw, err := im.Firmware(ctx)
		if err != nil {
			logger.Warn("firmware query failed", "error", err)
		} else {
			report.Firmware = &fw
		}
	}

	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓ connected"), report.Port)
	if report.Info != nil {
		fmt.Fprintf(out, "model: %s (%s)\n", report.Info.Model, report.Info.Code)
	}
	if report.Firmware != nil {
		fmt.Fprintf(out, "firmware: mainboard %s, hand controller %s\n",
			report.Firmware.Mainboard, report.Firmware.HandController)
	}
	fmt.Fprintf(out, "position: %s\n", pos)
	fmt.Fprintf(out, "polar aligned: %t\n", report.PolarAligned)

	return nil
}
