// Package proctest provides a fake proc.Executor that records invocations
// and imitates the file effects of httparchive and record_wpr.
package proctest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/weiihann/wprrecord/proc"
)

// Fake records every command and simulates the external tools.
//
// httparchive verbs are recognised after "run src/httparchive.go":
// merge concatenates its inputs into the output, trim appends
// "-<host>" to the file, ls prints the file content. A command whose
// args contain "record_wpr" writes <Archive>.wprgo and its sidecar into
// DataDir, named after the benchmark and the call number.
type Fake struct {
	DataDir string

	// FailOn makes the first command whose joined args contain the
	// substring exit with code 1.
	FailOn string

	mu    sync.Mutex
	calls []proc.Cmd
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []proc.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]proc.Cmd(nil), f.calls...)
}

// Verbs returns the httparchive verb (or "record_wpr") of each call.
func (f *Fake) Verbs() []string {
	var verbs []string
	for _, c := range f.Calls() {
		verbs = append(verbs, verbOf(c))
	}

	return verbs
}

// Run implements proc.Executor.
func (f *Fake) Run(_ context.Context, cmd proc.Cmd) (proc.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	n := len(f.calls)
	f.mu.Unlock()

	if f.FailOn != "" && strings.Contains(strings.Join(cmd.Args, " "), f.FailOn) {
		return proc.Output{}, &proc.ExitError{Cmd: cmd.String(), ExitCode: 1, Stderr: "simulated failure"}
	}

	var (
		stdout string
		err    error
	)

	switch verbOf(cmd) {
	case "record_wpr":
		err = f.record(cmd, n)
	case "merge":
		err = merge(cmd.Args[3:])
	case "trim":
		err = trim(cmd.Args[3:])
	case "ls":
		stdout, err = list(cmd.Args[3:])
	}

	if err != nil {
		return proc.Output{}, &proc.ExitError{Cmd: cmd.String(), ExitCode: 2, Stderr: err.Error()}
	}

	return proc.Output{Stdout: []byte(stdout)}, nil
}

func verbOf(cmd proc.Cmd) string {
	for i, arg := range cmd.Args {
		if strings.HasSuffix(arg, "record_wpr") {
			return "record_wpr"
		}
		if strings.HasSuffix(arg, "httparchive.go") && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}

	return ""
}

func (f *Fake) record(cmd proc.Cmd, n int) error {
	if f.DataDir == "" {
		return nil
	}

	benchmark := "unknown"
	for i, arg := range cmd.Args {
		if strings.HasSuffix(arg, "record_wpr") && i+1 < len(cmd.Args) {
			benchmark = cmd.Args[i+1]
		}
	}

	name := filepath.Join(f.DataDir, fmt.Sprintf("%s_%03d.wprgo", benchmark, n))
	if err := os.WriteFile(name, []byte(benchmark), 0o644); err != nil {
		return err
	}

	return os.WriteFile(name+".sha1", []byte("sha1"), 0o644)
}

// merge args: <inputs...> <output>
func merge(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("merge needs inputs and an output")
	}

	var parts []string
	for _, in := range args[:len(args)-1] {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}

	return os.WriteFile(args[len(args)-1], []byte(strings.Join(parts, "+")), 0o644)
}

// trim args: --host <host> <in> <out>
func trim(args []string) error {
	if len(args) != 4 || args[0] != "--host" {
		return fmt.Errorf("bad trim args %v", args)
	}

	data, err := os.ReadFile(args[2])
	if err != nil {
		return err
	}

	return os.WriteFile(args[3], append(data, "-"+args[1]...), 0o644)
}

func list(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("bad ls args %v", args)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}

	return string(data), nil
}
