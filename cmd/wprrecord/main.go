// Package main provides the CLI entry point for wprrecord, which records
// Web Page Replay archives for browser performance benchmarks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weiihann/wprrecord/journal"
	"github.com/weiihann/wprrecord/perfconfig"
	"github.com/weiihann/wprrecord/proc"
	"github.com/weiihann/wprrecord/record"
	"github.com/weiihann/wprrecord/report"
	"github.com/weiihann/wprrecord/wpr"
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("wprrecord failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	srcDir      string
	catapultDir string
	perfDir     string
	dataDir     string
	vpython     string
	goBinary    string
	journalPath string
	verbose     bool
}

func (g *globalFlags) paths() (perfconfig.Paths, error) {
	srcDir, err := filepath.Abs(g.srcDir)
	if err != nil {
		return perfconfig.Paths{}, fmt.Errorf("resolve src dir: %w", err)
	}

	p := perfconfig.NewPaths(srcDir)
	p.Vpython = g.vpython
	p.Go = g.goBinary

	// httparchive runs from the catapult checkout, so every path
	// handed to it must be absolute.
	for dst, src := range map[*string]string{
		&p.CatapultDir:     g.catapultDir,
		&p.PerfDir:         g.perfDir,
		&p.PageSetsDataDir: g.dataDir,
	} {
		if src == "" {
			continue
		}
		if *dst, err = filepath.Abs(src); err != nil {
			return perfconfig.Paths{}, fmt.Errorf("resolve %s: %w", src, err)
		}
	}

	return p, nil
}

// env is the wiring every subcommand runs with.
type env struct {
	recorder *record.Recorder
	closeFn  func() error
}

func (e *env) Close() error {
	if e.closeFn == nil {
		return nil
	}

	return e.closeFn()
}

// closeInto closes e and reports a close failure through *errp unless
// the command already failed.
func (e *env) closeInto(errp *error) {
	if err := e.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("close journal: %w", err)
	}
}

func (g *globalFlags) newEnv(logger *slog.Logger) (*env, error) {
	paths, err := g.paths()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	e := &env{}

	var exec proc.Executor = proc.NewExec(logger)

	if g.journalPath != "" {
		f, err := os.OpenFile(g.journalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}

		exec = journal.New(f, runID, exec)
		e.closeFn = f.Close
	}

	e.recorder = record.New(paths, exec, logger)
	e.recorder.RunID = runID

	return e, nil
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "wprrecord",
		Short: "Record Web Page Replay archives for browser benchmarks",
		Long: `wprrecord records a benchmark set with a baseline and a comparison
browser, merges the recorded Web Page Replay archives into one, removes
traffic to update and telemetry hosts, and publishes the result to the
artifacts directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if g.verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", perfconfig.DefaultConfigFile,
		"Path to the runners/benchmarks YAML configuration")
	flags.StringVar(&g.srcDir, "src-dir", ".",
		"Chromium src directory (holds third_party/ and tools/)")
	flags.StringVar(&g.catapultDir, "catapult-dir", "",
		"Catapult checkout (default: <src-dir>/third_party/catapult)")
	flags.StringVar(&g.perfDir, "perf-dir", "",
		"Chromium perf directory (default: <src-dir>/tools/perf)")
	flags.StringVar(&g.dataDir, "data-dir", "",
		"Archive directory (default: <perf-dir>/page_sets/data)")
	flags.StringVar(&g.vpython, "vpython", "vpython3",
		"Python launcher for the benchmark runner")
	flags.StringVar(&g.goBinary, "go", "go",
		"Go toolchain used to run httparchive")
	flags.StringVar(&g.journalPath, "journal", "",
		"Append a JSONL record of every external command to this file")
	flags.BoolVarP(&g.verbose, "verbose", "v", false,
		"Log external command lines and output")

	root.AddCommand(
		newRecordCmd(logger, g),
		newCleanCmd(logger, g),
		newMergeCmd(logger, g),
		newTrimCmd(logger, g),
		newInitConfigCmd(logger),
	)

	return root
}

func newRecordCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		workingDir string
		timeout    time.Duration
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record, merge, trim and publish a WPR archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := perfconfig.LoadConfig(g.configPath)
			if err != nil {
				return err
			}

			e, err := g.newEnv(logger)
			if err != nil {
				return err
			}
			defer e.closeInto(&err)

			opts := &perfconfig.Options{
				WorkingDirectory: workingDir,
				BenchmarkTimeout: timeout,
			}

			res, err := e.recorder.Record(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}

			if outputJSON {
				if err := report.GenerateJSON(cmd.OutOrStdout(), res); err != nil {
					return fmt.Errorf("generate JSON report: %w", err)
				}

				return nil
			}

			if err := report.Generate(cmd.OutOrStdout(), res); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&workingDir, "working-dir", ".",
		"Directory receiving profiles/ and artifacts/")
	flags.DurationVar(&timeout, "timeout", perfconfig.DefaultBenchmarkTimeout,
		"Timeout for each benchmark runner invocation")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the run summary as JSON instead of markdown")

	return cmd
}

func newCleanCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete recorded archives from the data directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) (err error) {
			e, err := g.newEnv(logger)
			if err != nil {
				return err
			}
			defer e.closeInto(&err)

			return e.recorder.Archives().Clean()
		},
	}
}

func newMergeCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge recorded archives into the last one and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			e, err := g.newEnv(logger)
			if err != nil {
				return err
			}
			defer e.closeInto(&err)

			output, err := e.recorder.Archives().Merge(cmd.Context(), e.recorder.Tool())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), output)

			return nil
		},
	}
}

func newTrimCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trim <archive>",
		Short: "Remove update and telemetry hosts from an archive in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := g.newEnv(logger)
			if err != nil {
				return err
			}
			defer e.closeInto(&err)

			archive, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve archive: %w", err)
			}

			listing, err := wpr.PostProcess(cmd.Context(), e.recorder.Tool(), archive)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), listing)

			return nil
		},
	}
}

func newInitConfigCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := perfconfig.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}

			if err := perfconfig.WriteDefaultConfig(path); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "wrote config", slog.String("path", path))

			return nil
		},
	}
}
