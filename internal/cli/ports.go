// Package cli provides Cobra command definitions for scopectl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/chazuruo/scopectl/internal/mount"
)

// listPorts enumerates serial devices. Tests replace it.
var listPorts = serial.GetPortsList

// PortsOptions contains the options for the ports command.
type PortsOptions struct {
	JSON bool
}

// PortInfo describes one serial device.
type PortInfo struct {
	Name        string `json:"name"`
	FormatValid bool   `json:"format_valid"`
}

// NewPortsCommand creates the ports command.
func NewPortsCommand() *cobra.Command {
	opts := &PortsOptions{}

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long: `List the serial ports visible to this machine.

Each port is checked against the device name format that validate
expects on this operating system.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPorts(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output in JSON format")

	return cmd
}

func runPorts(w io.Writer, opts *PortsOptions) error {
	names, err := listPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	sort.Strings(names)

	ports := make([]PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, PortInfo{Name: name, FormatValid: mount.PortNameValid(runtime.GOOS, name)})
	}

	if opts.JSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(ports)
	}

	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}

	tbl := table.New("PORT", "FORMAT").WithWriter(w)
	for _, p := range ports {
		status := "ok"
		if !p.FormatValid {
			status = "unexpected"
		}
		tbl.AddRow(p.Name, status)
	}
	tbl.Print()

	fmt.Fprintf(w, "\nTotal: %d port(s)\n", len(ports))
	return nil
}
