// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chazuruo/scopectl/internal/config"
	"github.com/chazuruo/scopectl/internal/logging"
)

var (
	// NoTUI indicates that TUI/interactive mode should be disabled.
	// This is set by the global --no-tui flag.
	NoTUI bool

	// LogLevel overrides [log].level when non-empty.
	// This is set by the global --log-level flag.
	LogLevel string

	// globalMutex protects the globals above for concurrent access.
	globalMutex sync.RWMutex
)

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&NoTUI, "no-tui", false,
		"disable TUI/interactive mode; use plain text or JSON output")
	cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "",
		"log level (debug, info, warn, error); overrides the config file")
}

// IsNoTUI returns true if TUI mode is disabled.
func IsNoTUI() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return NoTUI
}

func logLevel() string {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return LogLevel
}

// newLogger builds the command logger from cfg, honouring --log-level.
// Logs go to w, normally the command's stderr.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level := cfg.Log.Level
	if override := logLevel(); override != "" {
		level = override
	}
	return logging.New(level, cfg.Log.Format, w)
}
