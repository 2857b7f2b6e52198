package wpr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Archive file naming.
const (
	ArchivePattern = "*.wprgo"
	SidecarExt     = ".sha1"
)

// ErrNoArchives is returned by Merge when the data directory holds no
// archives.
var ErrNoArchives = errors.New("no wprgo files to merge")

// HostsToRemove lists hosts whose traffic varies between runs (component
// and safe browsing updates) and is trimmed from every recording.
var HostsToRemove = []string{
	"brave-core-ext.s3.brave.com", // components downloading
	"go-updater.brave.com",        // components update check
	"redirector.brave.com",
	"optimizationguide-pa.googleapis.com",     // optimization guide component
	"safebrowsingohttpgateway.googleapis.com", // safe browsing update
}

// Archives manages the *.wprgo files in a page sets data directory.
type Archives struct {
	Dir    string
	Logger *slog.Logger
}

// NewArchives returns Archives for dir.
func NewArchives(dir string, logger *slog.Logger) *Archives {
	return &Archives{
		Dir:    dir,
		Logger: logger.With(slog.String("archives", dir)),
	}
}

// Pattern is the glob matching every archive in Dir.
func (a *Archives) Pattern() string {
	return filepath.Join(a.Dir, ArchivePattern)
}

// List returns matching archives in lexical order. Paths are absolute
// because httparchive runs from its own checkout.
func (a *Archives) List() ([]string, error) {
	dir, err := filepath.Abs(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", a.Dir, err)
	}

	pattern := filepath.Join(dir, ArchivePattern)

	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	return files, nil
}

// Clean deletes every archive. Sidecars are left for the recorder to
// overwrite.
func (a *Archives) Clean() error {
	files, err := a.List()
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("remove stale archive: %w", err)
		}
		a.Logger.Debug("removed stale archive", slog.String("file", file))
	}

	if len(files) > 0 {
		a.Logger.Info("cleaned stale archives", slog.Int("count", len(files)))
	}

	return nil
}

// Merge combines every archive into the last one in glob order and
// removes the now redundant inputs and all their sidecars. It returns
// the merged archive path.
func (a *Archives) Merge(ctx context.Context, tool *Tool) (string, error) {
	files, err := a.List()
	if err != nil {
		return "", err
	}

	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoArchives, a.Dir)
	}

	output := files[len(files)-1]

	a.Logger.InfoContext(ctx, "merging archives",
		slog.Int("inputs", len(files)),
		slog.String("output", output),
	)

	if err := tool.Merge(ctx, files, output); err != nil {
		return "", err
	}

	if err := a.removeSidecar(output); err != nil {
		return "", err
	}

	for _, file := range files[:len(files)-1] {
		if err := os.Remove(file); err != nil {
			return "", fmt.Errorf("remove merged input: %w", err)
		}
		if err := a.removeSidecar(file); err != nil {
			return "", err
		}
	}

	return output, nil
}

func (a *Archives) removeSidecar(file string) error {
	sidecar := file + SidecarExt

	err := os.Remove(sidecar)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Debug("sidecar already absent", slog.String("file", sidecar))

		return nil
	}
	if err != nil {
		return fmt.Errorf("remove sidecar: %w", err)
	}

	return nil
}

// PostProcess trims HostsToRemove from file in place, one host at a
// time, and returns the final listing of the archive.
func PostProcess(ctx context.Context, tool *Tool, file string) (string, error) {
	for _, host := range HostsToRemove {
		tool.Logger.DebugContext(ctx, "trimming host", slog.String("host", host))

		if err := tool.Trim(ctx, host, file, file); err != nil {
			return "", err
		}
	}

	listing, err := tool.List(ctx, file)
	if err != nil {
		return "", err
	}

	tool.Logger.InfoContext(ctx, "archive post-processed",
		slog.String("file", file),
		slog.Int("hosts_removed", len(HostsToRemove)),
	)

	return listing, nil
}
