// Package perfconfig holds the recording configuration: which browsers to
// run, which benchmarks to record and where the Chromium source tree lives.
package perfconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up by the CLI.
const DefaultConfigFile = "wprrecord.yaml"

// DefaultBenchmarkTimeout bounds a single benchmark runner invocation.
const DefaultBenchmarkTimeout = 360 * time.Second

// RunnerConfig describes one browser to record with.
type RunnerConfig struct {
	// Name identifies the runner in logs and profile directories
	// (e.g. "brave", "chromium").
	Name string `yaml:"name"`

	// Binary is the path to the browser executable.
	Binary string `yaml:"binary"`

	// Profile is an optional source profile directory. It is copied
	// into the working directory before the first benchmark runs.
	Profile string `yaml:"profile,omitempty"`

	// BrowserArgs are extra command-line flags for the browser itself.
	BrowserArgs []string `yaml:"browser_args,omitempty"`

	// ExtraArgs are passed verbatim to the benchmark runner.
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// BenchmarkConfig names a benchmark and optionally the stories to record.
type BenchmarkConfig struct {
	Name    string   `yaml:"name"`
	Stories []string `yaml:"stories,omitempty"`
}

// StoryFilter returns the runner story filter, or "" for all stories.
func (b BenchmarkConfig) StoryFilter() string {
	return strings.Join(b.Stories, "|")
}

// Config is the recording configuration.
type Config struct {
	Runners    []RunnerConfig    `yaml:"runners"`
	Benchmarks []BenchmarkConfig `yaml:"benchmarks"`
}

// Validate checks fields that every command depends on. The runner
// count is checked by the recorder itself.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Runners))
	for i, r := range c.Runners {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("runners[%d]: name is required", i))
		} else if seen[r.Name] {
			errs = append(errs, fmt.Errorf("runners[%d]: duplicate name %q", i, r.Name))
		}
		seen[r.Name] = true

		if r.Binary == "" {
			errs = append(errs, fmt.Errorf("runners[%d]: binary is required", i))
		}
	}

	for i, b := range c.Benchmarks {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("benchmarks[%d]: name is required", i))
		}
	}

	return errors.Join(errs...)
}

// DefaultConfig returns a starter configuration recording the loading
// benchmark with a baseline and a comparison browser.
func DefaultConfig() Config {
	return Config{
		Runners: []RunnerConfig{
			{Name: "brave", Binary: "/usr/bin/brave-browser"},
			{Name: "chromium", Binary: "/usr/bin/chromium"},
		},
		Benchmarks: []BenchmarkConfig{
			{Name: "loading.desktop.brave"},
		},
	}
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// WriteDefaultConfig writes DefaultConfig to path. It refuses to
// overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	header := "# wprrecord configuration. Exactly two runners are required:\n" +
		"# the baseline browser first, the comparison browser second.\n\n"

	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// Options controls a single recording run.
type Options struct {
	// WorkingDirectory receives profiles/ and artifacts/.
	WorkingDirectory string

	// DoReport enables uploading of benchmark results. Recording
	// always turns it off.
	DoReport bool

	// BenchmarkTimeout bounds each benchmark runner invocation.
	BenchmarkTimeout time.Duration
}

// ApplyDefaults fills unset options.
func (o *Options) ApplyDefaults() {
	if o.WorkingDirectory == "" {
		o.WorkingDirectory = "."
	}
	if o.BenchmarkTimeout <= 0 {
		o.BenchmarkTimeout = DefaultBenchmarkTimeout
	}
}
