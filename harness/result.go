// Package harness runs the Chromium benchmark recorder once per browser
// and benchmark.
package harness

// Result holds the outcome of a single record_wpr invocation.
type Result struct {
	Runner      string `json:"runner"`
	Benchmark   string `json:"benchmark"`
	StoryFilter string `json:"story_filter,omitempty"`
	ElapsedMs   int64  `json:"elapsed_ms"`
}
