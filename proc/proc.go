// Package proc runs external tools as subprocesses.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Cmd describes a single subprocess invocation.
type Cmd struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// String returns the command line as it would be typed in a shell.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output holds what a finished subprocess wrote.
type Output struct {
	Stdout  []byte
	Stderr  []byte
	Elapsed time.Duration
}

// WaitDelay bounds how long Run waits for output pipes after the
// command has been killed. Descendants that inherited the pipes may
// otherwise keep Run blocked.
var WaitDelay = 5 * time.Second

// Executor runs commands to completion.
type Executor interface {
	Run(ctx context.Context, cmd Cmd) (Output, error)
}

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Cmd      string
	Dir      string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Cmd, e.ExitCode)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}

	return msg
}

// Exec is the os/exec backed Executor.
type Exec struct {
	Logger *slog.Logger
}

// NewExec creates an Exec that logs through logger.
func NewExec(logger *slog.Logger) *Exec {
	return &Exec{Logger: logger}
}

// Run executes cmd and waits for it. A positive Timeout bounds the run.
func (e *Exec) Run(ctx context.Context, cmd Cmd) (Output, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = WaitDelay
	killGroupOnCancel(c)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.Logger.DebugContext(ctx, "running command",
		slog.String("cmd", cmd.String()),
		slog.String("dir", cmd.Dir),
	)

	start := time.Now()
	err := c.Run()
	out := Output{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: time.Since(start),
	}

	if stdout.Len() > 0 {
		e.Logger.DebugContext(ctx, "command output",
			slog.String("cmd", cmd.Name),
			slog.String("stdout", stdout.String()),
		)
	}

	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", cmd, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{
			Cmd:      cmd.String(),
			Dir:      cmd.Dir,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}

	return out, fmt.Errorf("start %s: %w", cmd.Name, err)
}
