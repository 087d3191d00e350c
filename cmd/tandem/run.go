package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tandem/internal/config"
	"tandem/internal/logging"
	"tandem/internal/metrics"
	"tandem/internal/orchestrator"
)

// failureTailLines bounds the log tail echoed to stderr when a run
// fails.
const failureTailLines = 20

func newRunCmd() *cobra.Command {
	var (
		configPath   string
		resultPath   string
		record       bool
		coSimulation bool
		levelLog     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one configured run",
		Long: `Execute one run end to end: prepare the results tree, publish the
effective configuration, launch the configured children in handshake
order, and wait for all of them.

Modes:
  plain          producer only
  record         producer plus one storage relay per device
  co-simulation  producer, consumer, one forwarding relay per device

Example:
  tandem run --config run_config.yaml
  tandem run --config run_config.yaml --result-path /tmp/run7 --record`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				run = loaded
			}
			if cmd.Flags().Changed("result-path") {
				run.ResultPath = resultPath
			}
			if cmd.Flags().Changed("record") {
				run.Record = record
			}
			if cmd.Flags().Changed("co-simulation") {
				run.CoSimulation = coSimulation
			}
			if cmd.Flags().Changed("level-log") {
				run.LevelLog = levelLog
			}
			if err := run.Validate(); err != nil {
				return err
			}
			return executeRun(cmd, run)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a run configuration YAML (defaults apply when omitted)")
	cmd.Flags().StringVar(&resultPath, "result-path", "", "results tree root (overrides the configuration)")
	cmd.Flags().BoolVar(&record, "record", false, "record mode: one storage relay persists each device stream")
	cmd.Flags().BoolVar(&coSimulation, "co-simulation", false, "co-simulation mode: forwarding relays couple producer and consumer")
	cmd.Flags().IntVar(&levelLog, "level-log", 1, "log verbosity 0-4 (0 = debug)")

	return cmd
}

func executeRun(cmd *cobra.Command, run config.Run) error {
	tree := config.NewTree(run.ResultPath)
	if err := tree.Prepare(); err != nil {
		return err
	}
	logger, closeLog, err := logging.NewFileLogger(tree.LogDir(), "tandem", run.LevelLog)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	// Use the command's context if set (tests), otherwise our own.
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown signal received", map[string]string{
				"signal": sig.String(),
			})
			cancel()
		case <-ctx.Done():
		}
	}()

	registry := metrics.Default
	runner, err := orchestrator.NewRunner(run, logger, registry)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s starting in %s (%s mode)\n", runner.RunID(), run.ResultPath, run.Mode())
	runErr := runner.Execute(ctx)
	if err := registry.WriteFile(tree.MetricsPath("tandem")); err != nil {
		logger.Warn("metrics dump failed", map[string]string{
			"error": err.Error(),
		})
	}
	if runErr != nil {
		printRecent(cmd.ErrOrStderr(), logger)
		return fmt.Errorf("run %s: %w", runner.RunID(), runErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "run completed")
	return nil
}

// printRecent echoes the tail of the run log so a failure is readable
// without opening the log file.
func printRecent(out io.Writer, logger *logging.Logger) {
	entries := logger.Recent()
	if len(entries) == 0 {
		return
	}
	if len(entries) > failureTailLines {
		entries = entries[len(entries)-failureTailLines:]
	}
	fmt.Fprintln(out, "recent log entries:")
	for _, entry := range entries {
		fmt.Fprintln(out, logging.FormatEntry(entry))
	}
}
