package record

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/weiihann/wprrecord/internal/proctest"
	"github.com/weiihann/wprrecord/perfconfig"
	"github.com/weiihann/wprrecord/proc"
	"github.com/weiihann/wprrecord/wpr"
)

type fixture struct {
	paths   perfconfig.Paths
	workDir string
	cfg     perfconfig.Config
	fake    *proctest.Fake
	rec     *Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	src := t.TempDir()
	paths := perfconfig.NewPaths(src)
	if err := os.MkdirAll(paths.PageSetsData(), 0o755); err != nil {
		t.Fatal(err)
	}

	binDir := t.TempDir()
	var runners []perfconfig.RunnerConfig
	for _, name := range []string{"brave", "chromium"} {
		bin := filepath.Join(binDir, name)
		if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
		runners = append(runners, perfconfig.RunnerConfig{Name: name, Binary: bin})
	}

	fake := &proctest.Fake{DataDir: paths.PageSetsData()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := New(paths, fake, logger)
	rec.RunID = "test-run"

	return &fixture{
		paths:   paths,
		workDir: t.TempDir(),
		cfg: perfconfig.Config{
			Runners: runners,
			Benchmarks: []perfconfig.BenchmarkConfig{
				{Name: "loading", Stories: []string{"Google", "YouTube"}},
				{Name: "system"},
			},
		},
		fake: fake,
		rec:  rec,
	}
}

func TestRecordFullRun(t *testing.T) {
	f := newFixture(t)

	stale := filepath.Join(f.paths.PageSetsData(), "stale.wprgo")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := &perfconfig.Options{WorkingDirectory: f.workDir, DoReport: true}

	result, err := f.rec.Record(context.Background(), f.cfg, opts)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if opts.DoReport {
		t.Error("DoReport still enabled after recording")
	}

	wantVerbs := []string{
		"record_wpr", "record_wpr", "record_wpr", "record_wpr",
		"merge", "trim", "trim", "trim", "trim", "trim", "ls",
	}
	if got := f.fake.Verbs(); !reflect.DeepEqual(got, wantVerbs) {
		t.Errorf("verbs = %v, want %v", got, wantVerbs)
	}

	// Runners in config order, benchmarks in config order per runner.
	calls := f.fake.Calls()
	for i, runner := range []int{0, 0, 1, 1} {
		flag := "--browser-executable=" + f.cfg.Runners[runner].Binary
		if !strings.Contains(strings.Join(calls[i].Args, " "), flag) {
			t.Errorf("call %d missing %s: %v", i, flag, calls[i].Args)
		}
	}

	entries, err := os.ReadDir(f.paths.PageSetsData())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "system_004.wprgo" {
		t.Fatalf("data dir = %v, want only system_004.wprgo", entries)
	}
	if result.ArchivePath != filepath.Join(f.paths.PageSetsData(), "system_004.wprgo") {
		t.Errorf("archive path = %q", result.ArchivePath)
	}

	archive, err := os.ReadFile(result.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(archive, []byte("loading+loading+system+system")) {
		t.Errorf("archive = %q, stale content or wrong merge order", archive)
	}
	if !bytes.HasSuffix(archive, []byte("-safebrowsingohttpgateway.googleapis.com")) {
		t.Errorf("archive = %q, trims missing", archive)
	}

	artifacts, err := os.ReadDir(filepath.Join(f.workDir, ArtifactsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts = %v, want one file", artifacts)
	}

	published, err := os.ReadFile(result.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(published, archive) {
		t.Error("published artifact differs from archive")
	}
	if result.ArchiveBytes != uint64(len(archive)) {
		t.Errorf("archive bytes = %d, want %d", result.ArchiveBytes, len(archive))
	}

	if result.RunID != "test-run" {
		t.Errorf("run id = %q", result.RunID)
	}
	if len(result.Benchmarks) != 4 {
		t.Errorf("benchmarks = %d, want 4", len(result.Benchmarks))
	}
	if result.Listing != string(archive) {
		t.Errorf("listing = %q", result.Listing)
	}
	if !reflect.DeepEqual(result.HostsRemoved, wpr.HostsToRemove) {
		t.Errorf("hosts removed = %v", result.HostsRemoved)
	}
}

func TestRecordRunnerCount(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		f := newFixture(t)

		runners := make([]perfconfig.RunnerConfig, n)
		for i := range runners {
			runners[i] = f.cfg.Runners[0]
		}
		f.cfg.Runners = runners

		stale := filepath.Join(f.paths.PageSetsData(), "stale.wprgo")
		if err := os.WriteFile(stale, nil, 0o644); err != nil {
			t.Fatal(err)
		}

		opts := &perfconfig.Options{WorkingDirectory: f.workDir, DoReport: true}

		_, err := f.rec.Record(context.Background(), f.cfg, opts)
		if !errors.Is(err, ErrRunnerCount) {
			t.Fatalf("%d runners: error = %v, want ErrRunnerCount", n, err)
		}

		if calls := f.fake.Calls(); len(calls) != 0 {
			t.Errorf("%d runners: %d commands run, want 0", n, len(calls))
		}
		if _, err := os.Stat(stale); err != nil {
			t.Errorf("%d runners: stale archive touched: %v", n, err)
		}
		if !opts.DoReport {
			t.Errorf("%d runners: options modified before validation", n)
		}
	}
}

func TestRecordNoArchives(t *testing.T) {
	f := newFixture(t)
	f.fake.DataDir = ""

	_, err := f.rec.Record(context.Background(), f.cfg, &perfconfig.Options{WorkingDirectory: f.workDir})
	if !errors.Is(err, wpr.ErrNoArchives) {
		t.Fatalf("error = %v, want ErrNoArchives", err)
	}

	for _, verb := range f.fake.Verbs() {
		if verb != "record_wpr" {
			t.Errorf("unexpected %s after empty recording", verb)
		}
	}

	if _, err := os.Stat(filepath.Join(f.workDir, ArtifactsDir)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifacts dir created: %v", err)
	}
}

func TestRecordBenchmarkFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.fake.FailOn = "--browser-executable=" + f.cfg.Runners[1].Binary

	_, err := f.rec.Record(context.Background(), f.cfg, &perfconfig.Options{WorkingDirectory: f.workDir})

	var exitErr *proc.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *proc.ExitError", err)
	}

	want := []string{"record_wpr", "record_wpr", "record_wpr"}
	if got := f.fake.Verbs(); !reflect.DeepEqual(got, want) {
		t.Errorf("verbs = %v, want %v", got, want)
	}
}

func TestRecordMissingBrowser(t *testing.T) {
	f := newFixture(t)
	f.cfg.Runners[1].Binary = filepath.Join(t.TempDir(), "absent")

	_, err := f.rec.Record(context.Background(), f.cfg, &perfconfig.Options{WorkingDirectory: f.workDir})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want not exist", err)
	}
	if len(f.fake.Calls()) != 0 {
		t.Error("commands run despite missing browser")
	}
}

func TestPublishCreatesArtifactsDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "final.wprgo")
	if err := os.WriteFile(src, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	workDir := filepath.Join(t.TempDir(), "nested", "work")

	dst, size, err := Publish(src, workDir)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if dst != filepath.Join(workDir, "artifacts", "final.wprgo") {
		t.Errorf("dst = %q", dst)
	}
	if size != 7 {
		t.Errorf("size = %d, want 7", size)
	}
}
