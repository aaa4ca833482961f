// Package cli provides the command-line interface for the combiner
// binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/combiner/internal/config"
	"github.com/randalmurphal/combiner/internal/wiring"
)

// Exit codes per spec.md §6: 0 on a clean shutdown, 1 for every
// startup or runtime failure (config not found, config invalid, or a
// fatal error surfaced from the Driver loop).
const (
	ExitOK    = 0
	ExitError = 1
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitOK
}

// NewRootCommand builds the combiner cobra command: a single `run`
// behavior attached to the root command itself, since this binary has
// exactly one job (spec.md §6).
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "combiner",
		Short: "Run the stream correlation engine",
		Long: `combiner reads a correlation config document and runs the
event-correlation engine it describes: classify inbound messages,
accumulate them by correlation key, evaluate each trigger's rule, and
emit or reschedule as the rule's predicate and timing dictate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the correlation config document (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, configPath string) error {
	logger := newLogger()

	if _, err := os.Stat(configPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		return fmt.Errorf("cannot access config file: %w", err)
	}

	doc, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sys, err := wiring.Build(doc, wiring.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer sys.Close()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("combiner started", slog.String("config", configPath))
	if err := sys.Driver.Run(runCtx); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	logger.Info("combiner stopped")
	return nil
}

// newLogger builds the process-wide slog logger, reading its level
// from COMBINER_LOG_LEVEL (spec.md §6's "environment filter
// variable"); an unset or unrecognized value defaults to info.
func newLogger() *slog.Logger {
	level := parseLevel(os.Getenv("COMBINER_LOG_LEVEL"))
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
