package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/wprrecord/perfconfig"
	"github.com/weiihann/wprrecord/proc"
)

// RunConfig holds parameters for a single benchmark recording.
type RunConfig struct {
	Benchmark perfconfig.BenchmarkConfig
	Timeout   time.Duration
}

// Runner records benchmarks with one prepared browser.
type Runner struct {
	Browser *Browser
	Paths   perfconfig.Paths
	Exec    proc.Executor
	Logger  *slog.Logger
}

// NewRunner creates a Runner for a prepared browser.
func NewRunner(
	browser *Browser,
	paths perfconfig.Paths,
	exec proc.Executor,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Browser: browser,
		Paths:   paths,
		Exec:    exec,
		Logger:  logger.With(slog.String("runner", browser.Name)),
	}
}

// Command assembles the record_wpr invocation for a benchmark.
func (r *Runner) Command(cfg RunConfig) proc.Cmd {
	args := []string{r.Paths.RecordWpr(), cfg.Benchmark.Name}
	args = append(args, r.Browser.RunBenchmarkArgs()...)

	if filter := cfg.Benchmark.StoryFilter(); filter != "" {
		args = append(args, "--story-filter="+filter)
	}

	return proc.Cmd{
		Name:    r.Paths.Vpython,
		Args:    args,
		Dir:     r.Paths.Perf(),
		Timeout: cfg.Timeout,
	}
}

// Run records a single benchmark and waits for the recorder to exit.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	cmd := r.Command(cfg)

	r.Logger.InfoContext(ctx, "recording benchmark",
		slog.String("benchmark", cfg.Benchmark.Name),
		slog.Int("stories", len(cfg.Benchmark.Stories)),
		slog.Duration("timeout", cfg.Timeout),
	)

	wallStart := time.Now()

	if _, err := r.Exec.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf(
			"record %s with %s: %w",
			cfg.Benchmark.Name, r.Browser.Name, err,
		)
	}

	wallElapsed := time.Since(wallStart)

	r.Logger.InfoContext(ctx, "benchmark recorded",
		slog.String("benchmark", cfg.Benchmark.Name),
		slog.Duration("wall_time", wallElapsed),
	)

	return &Result{
		Runner:      r.Browser.Name,
		Benchmark:   cfg.Benchmark.Name,
		StoryFilter: cfg.Benchmark.StoryFilter(),
		ElapsedMs:   wallElapsed.Milliseconds(),
	}, nil
}
