// Package record drives a complete Web Page Replay recording: both
// browsers record every benchmark, then the archives are merged, trimmed
// and published to the artifacts directory.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/weiihann/wprrecord/harness"
	"github.com/weiihann/wprrecord/internal/fsutil"
	"github.com/weiihann/wprrecord/perfconfig"
	"github.com/weiihann/wprrecord/proc"
	"github.com/weiihann/wprrecord/wpr"
)

// ErrRunnerCount is returned when the configuration does not name
// exactly two runners.
var ErrRunnerCount = errors.New("set two runners to record wpr: baseline and comparison")

// ArtifactsDir is the working-directory subdirectory receiving the
// final archive.
const ArtifactsDir = "artifacts"

// Result summarises a successful recording.
type Result struct {
	RunID        string           `json:"run_id"`
	ArchivePath  string           `json:"archive_path"`
	ArtifactPath string           `json:"artifact_path"`
	ArchiveBytes uint64           `json:"archive_bytes"`
	HostsRemoved []string         `json:"hosts_removed"`
	Listing      string           `json:"listing,omitempty"`
	Benchmarks   []harness.Result `json:"benchmarks"`
	ElapsedMs    int64            `json:"elapsed_ms"`
}

// Recorder sequences the external tools.
type Recorder struct {
	Paths  perfconfig.Paths
	Exec   proc.Executor
	Logger *slog.Logger

	// RunID tags the run in logs and results. Generated when empty.
	RunID string
}

// New creates a Recorder.
func New(paths perfconfig.Paths, exec proc.Executor, logger *slog.Logger) *Recorder {
	return &Recorder{
		Paths:  paths,
		Exec:   exec,
		Logger: logger,
	}
}

// Tool returns the httparchive wrapper for the configured checkout.
func (r *Recorder) Tool() *wpr.Tool {
	return wpr.NewTool(r.Paths.WebPageReplay(), r.Paths.Go, r.Exec, r.Logger)
}

// Archives returns the page sets data directory archives.
func (r *Recorder) Archives() *wpr.Archives {
	return wpr.NewArchives(r.Paths.PageSetsData(), r.Logger)
}

// Record runs both runners over every benchmark and publishes the
// merged, trimmed archive. opts.DoReport is switched off.
func (r *Recorder) Record(
	ctx context.Context,
	cfg perfconfig.Config,
	opts *perfconfig.Options,
) (*Result, error) {
	if len(cfg.Runners) != 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrRunnerCount, len(cfg.Runners))
	}

	opts.DoReport = false
	opts.ApplyDefaults()

	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.Logger.With(slog.String("run_id", runID))
	start := time.Now()

	logger.InfoContext(ctx, "starting wpr recording",
		slog.Any("runners", runnerNames(cfg.Runners)),
		slog.Int("benchmarks", len(cfg.Benchmarks)),
		slog.String("working_dir", opts.WorkingDirectory),
	)

	// Step 1: Check browsers and rebase profiles.
	browsers := make([]*harness.Browser, 0, len(cfg.Runners))
	for _, rc := range cfg.Runners {
		b, err := harness.Prepare(ctx, logger, opts.WorkingDirectory, rc)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", rc.Name, err)
		}
		browsers = append(browsers, b)
	}

	// Step 2: Remove archives left by earlier recordings.
	archives := r.Archives()
	if err := archives.Clean(); err != nil {
		return nil, fmt.Errorf("clean archives: %w", err)
	}

	// Step 3: Record every benchmark with each browser, sequentially.
	results := make([]harness.Result, 0, len(browsers)*len(cfg.Benchmarks))
	for _, b := range browsers {
		runner := harness.NewRunner(b, r.Paths, r.Exec, logger)

		for _, bench := range cfg.Benchmarks {
			res, err := runner.Run(ctx, harness.RunConfig{
				Benchmark: bench,
				Timeout:   opts.BenchmarkTimeout,
			})
			if err != nil {
				return nil, err
			}
			results = append(results, *res)
		}
	}

	// Step 4: Merge and trim.
	tool := r.Tool()

	output, err := archives.Merge(ctx, tool)
	if err != nil {
		return nil, fmt.Errorf("merge archives: %w", err)
	}

	listing, err := wpr.PostProcess(ctx, tool, output)
	if err != nil {
		return nil, fmt.Errorf("post-process %s: %w", output, err)
	}

	// Step 5: Publish.
	artifact, size, err := Publish(output, opts.WorkingDirectory)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "output file to upload",
		slog.String("file", output),
		slog.String("artifact", artifact),
	)

	return &Result{
		RunID:        runID,
		ArchivePath:  output,
		ArtifactPath: artifact,
		ArchiveBytes: size,
		HostsRemoved: wpr.HostsToRemove,
		Listing:      listing,
		Benchmarks:   results,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Publish copies file into <workingDir>/artifacts, creating the
// directory if needed, and returns the copy's path and size.
func Publish(file, workingDir string) (string, uint64, error) {
	dir := filepath.Join(workingDir, ArtifactsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create artifacts dir: %w", err)
	}

	dst := filepath.Join(dir, filepath.Base(file))
	if err := fsutil.CopyFile(file, dst); err != nil {
		return "", 0, fmt.Errorf("publish %s: %w", file, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", 0, fmt.Errorf("stat artifact: %w", err)
	}

	return dst, uint64(info.Size()), nil
}

func runnerNames(runners []perfconfig.RunnerConfig) []string {
	names := make([]string, 0, len(runners))
	for _, r := range runners {
		names = append(names, r.Name)
	}

	return names
}
