// Package report formats recording results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/weiihann/wprrecord/record"
)

// Generate writes a markdown summary of a recording run to w.
func Generate(w io.Writer, res *record.Result) error {
	if res == nil {
		return fmt.Errorf("no result to report")
	}

	fmt.Fprintln(w, "## WPR Recording")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run: `%s` in %s\n", res.RunID, formatMs(res.ElapsedMs))
	fmt.Fprintf(w, "Archive: `%s` (%s)\n", res.ArchivePath, formatBytes(res.ArchiveBytes))
	fmt.Fprintf(w, "Artifact: `%s`\n", res.ArtifactPath)
	fmt.Fprintln(w)

	// Benchmark table.
	fmt.Fprintln(w, "| Runner | Benchmark | Stories | Elapsed |")
	fmt.Fprintln(w, "|--------|-----------|---------|---------|")

	for _, b := range res.Benchmarks {
		stories := b.StoryFilter
		if stories == "" {
			stories = "all"
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			b.Runner,
			b.Benchmark,
			strings.ReplaceAll(stories, "|", ", "),
			formatMs(b.ElapsedMs),
		)
	}

	fmt.Fprintln(w)

	// Trimmed hosts.
	fmt.Fprintln(w, "Hosts removed:")
	for _, h := range res.HostsRemoved {
		fmt.Fprintf(w, "  - %s\n", h)
	}

	if res.Listing != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "```")
		fmt.Fprint(w, strings.TrimRight(res.Listing, "\n"))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "```")
	}

	return nil
}

// GenerateJSON writes res as JSON to w.
func GenerateJSON(w io.Writer, res *record.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(res)
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	return humanize.IBytes(b)
}
