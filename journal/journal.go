// Package journal records every external command a recording run issues
// as JSONL, one entry per invocation, so a failed run can be replayed by
// hand.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/weiihann/wprrecord/proc"
)

// Entry is one journal line.
type Entry struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Time      time.Time `json:"time"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	Dir       string    `json:"dir,omitempty"`
	ElapsedMs int64     `json:"elapsed_ms"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
}

// Journal wraps an Executor and appends an Entry for every command it
// runs. It is safe for sequential use from one goroutine at a time.
type Journal struct {
	next  proc.Executor
	runID string

	mu  sync.Mutex
	enc *json.Encoder
	seq int
	now func() time.Time
}

// New returns a Journal writing to w and delegating to next.
func New(w io.Writer, runID string, next proc.Executor) *Journal {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &Journal{
		next:  next,
		runID: runID,
		enc:   enc,
		now:   time.Now,
	}
}

// Run delegates cmd to the wrapped Executor and records the outcome.
// A failure to write the journal is joined with the command's error.
func (j *Journal) Run(ctx context.Context, cmd proc.Cmd) (proc.Output, error) {
	start := j.now()
	out, runErr := j.next.Run(ctx, cmd)

	entry := Entry{
		RunID:     j.runID,
		Time:      start.UTC(),
		Command:   cmd.Name,
		Args:      cmd.Args,
		Dir:       cmd.Dir,
		ElapsedMs: out.Elapsed.Milliseconds(),
	}

	if runErr != nil {
		entry.ExitCode = -1
		entry.Error = runErr.Error()

		var exitErr *proc.ExitError
		if errors.As(runErr, &exitErr) {
			entry.ExitCode = exitErr.ExitCode
		}
	}

	if err := j.append(entry); err != nil {
		return out, errors.Join(runErr, err)
	}

	return out, runErr
}

func (j *Journal) append(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry.Seq = j.seq

	if err := j.enc.Encode(entry); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}

	return nil
}

// Read decodes every entry from r.
func Read(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)

	var entries []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}

			return entries, fmt.Errorf("decode entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
}
