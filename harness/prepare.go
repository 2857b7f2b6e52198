package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/weiihann/wprrecord/internal/fsutil"
	"github.com/weiihann/wprrecord/perfconfig"
)

// Browser is a runner whose binary has been checked and whose profile,
// if any, has been rebased into the working directory.
type Browser struct {
	Name       string
	Binary     string
	ProfileDir string
	Config     perfconfig.RunnerConfig
}

// ProfilePath returns where a runner's profile is rebased to.
func ProfilePath(workingDir, runner string) string {
	return filepath.Join(workingDir, "profiles", runner)
}

// Prepare checks the runner's browser binary and copies its source
// profile, if configured, into a fresh directory under workingDir.
func Prepare(
	ctx context.Context,
	logger *slog.Logger,
	workingDir string,
	rc perfconfig.RunnerConfig,
) (*Browser, error) {
	binary, err := filepath.Abs(rc.Binary)
	if err != nil {
		return nil, fmt.Errorf("resolve binary %s: %w", rc.Binary, err)
	}

	info, err := os.Stat(binary)
	if err != nil {
		return nil, fmt.Errorf("runner %s: browser binary: %w", rc.Name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("runner %s: browser binary %s is a directory", rc.Name, binary)
	}

	b := &Browser{Name: rc.Name, Binary: binary, Config: rc}

	if rc.Profile == "" {
		return b, nil
	}

	dst, err := filepath.Abs(ProfilePath(workingDir, rc.Name))
	if err != nil {
		return nil, fmt.Errorf("resolve profile dir: %w", err)
	}

	if err := os.RemoveAll(dst); err != nil {
		return nil, fmt.Errorf("clean profile dir %s: %w", dst, err)
	}

	n, err := fsutil.CopyTree(rc.Profile, dst)
	if err != nil {
		return nil, fmt.Errorf("runner %s: rebase profile: %w", rc.Name, err)
	}

	logger.InfoContext(ctx, "profile rebased",
		slog.String("runner", rc.Name),
		slog.String("source", rc.Profile),
		slog.String("dest", dst),
		slog.Int("files", n),
	)

	b.ProfileDir = dst

	return b, nil
}

// RunBenchmarkArgs returns the record_wpr flags selecting this browser.
func (b *Browser) RunBenchmarkArgs() []string {
	args := []string{
		"--browser=exact",
		"--browser-executable=" + b.Binary,
	}

	if b.ProfileDir != "" {
		args = append(args, "--profile-dir="+b.ProfileDir)
	}

	if len(b.Config.BrowserArgs) > 0 {
		args = append(args, "--extra-browser-args="+strings.Join(b.Config.BrowserArgs, " "))
	}

	return append(args, b.Config.ExtraArgs...)
}
