// Package wpr drives the catapult httparchive tool and manages the Web
// Page Replay archives the benchmark recorder leaves behind.
package wpr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/weiihann/wprrecord/proc"
)

// toolSource is the httparchive entry point, relative to the
// web_page_replay_go directory.
var toolSource = filepath.Join("src", "httparchive.go")

// Tool invokes httparchive through `go run` from its source checkout.
type Tool struct {
	// Dir is the web_page_replay_go directory.
	Dir string

	// GoBinary defaults to "go".
	GoBinary string

	Exec   proc.Executor
	Logger *slog.Logger
}

// NewTool creates a Tool rooted at the web_page_replay_go directory.
func NewTool(dir, goBinary string, exec proc.Executor, logger *slog.Logger) *Tool {
	if goBinary == "" {
		goBinary = "go"
	}

	return &Tool{
		Dir:      dir,
		GoBinary: goBinary,
		Exec:     exec,
		Logger:   logger.With(slog.String("tool", "httparchive")),
	}
}

// Run executes httparchive with args and returns its stdout.
func (t *Tool) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := proc.Cmd{
		Name: t.GoBinary,
		Args: append([]string{"run", toolSource}, args...),
		Dir:  t.Dir,
	}

	out, err := t.Exec.Run(ctx, cmd)
	if err != nil {
		return out.Stdout, fmt.Errorf("httparchive %s: %w", verb(args), err)
	}

	return out.Stdout, nil
}

// Merge combines inputs into output.
func (t *Tool) Merge(ctx context.Context, inputs []string, output string) error {
	args := make([]string, 0, len(inputs)+2)
	args = append(args, "merge")
	args = append(args, inputs...)
	args = append(args, output)

	_, err := t.Run(ctx, args...)

	return err
}

// Trim removes all traffic to host from in and writes the result to out.
func (t *Tool) Trim(ctx context.Context, host, in, out string) error {
	_, err := t.Run(ctx, "trim", "--host", host, in, out)

	return err
}

// List returns the httparchive listing of file.
func (t *Tool) List(ctx context.Context, file string) (string, error) {
	out, err := t.Run(ctx, "ls", file)

	return string(out), err
}

func verb(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
