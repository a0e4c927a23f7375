// Package cli provides Cobra command definitions for scopectl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/chazuruo/scopectl/internal/config"
	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
)

// ValidateOptions contains the options for the validate command.
type ValidateOptions struct {
	ConfigPath string
	JSON       bool
}

// ValidateResult is the JSON form of a validation run.
type ValidateResult struct {
	Path     string   `json:"path,omitempty"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the mount configuration",
		Long: `Validate the scopectl configuration and report every problem found.

The serial section is checked for:
- a device name in the format used by this operating system
- a baud rate between 9600 and 230400
- 5 to 8 data bits, 1, 1.5 or 2 stop bits, and a known parity

Exits non-zero when the configuration is invalid.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file path")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runValidate(w io.Writer, opts *ValidateOptions) error {
	path := opts.ConfigPath
	if path == "" {
		path = config.DetectConfigPath()
	}

	cfg, err := config.LoadFrom(path)
	result := ValidateResult{Path: path, Valid: err == nil}
	if err != nil {
		ve, ok := scopeerrors.AsValidationError(err)
		if !ok {
			return fmt.Errorf("failed to load config: %w", err)
		}
		result.Problems = ve.Problems
	}

	if opts.JSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		printValidateResult(w, result, cfg)
	}

	if !result.Valid {
		return fmt.Errorf("config invalid: %d problem(s)", len(result.Problems))
	}
	return nil
}

func printValidateResult(w io.Writer, result ValidateResult, cfg *config.Config) {
	source := result.Path
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintln(w, dimStyle.Render("config: "+source))

	if !result.Valid {
		for _, p := range result.Problems {
			fmt.Fprintf(w, "%s %s\n", errStyle.Render("✗"), p)
		}
		return
	}

	fmt.Fprintln(w, okStyle.Render("✓ config valid"))
	fmt.Fprintln(w)

	tbl := table.New("SETTING", "VALUE").WithWriter(w)
	tbl.AddRow("mount.type", cfg.Mount.Type)
	tbl.AddRow("serial.port", cfg.Serial.Port)
	tbl.AddRow("serial.baud_rate", cfg.Serial.BaudRate)
	tbl.AddRow("serial.framing", fmt.Sprintf("%d/%s/%v", cfg.Serial.DataBits, cfg.Serial.Parity, cfg.Serial.StopBits))
	tbl.AddRow("site", cfg.Location().String())
	tbl.Print()
}
