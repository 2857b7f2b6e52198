package perfconfig

import "path/filepath"

// Paths locates the tools and data directories inside a Chromium
// source checkout.
type Paths struct {
	// SrcDir is the root of the checkout (the directory holding
	// third_party/ and tools/).
	SrcDir string

	// Overrides. Empty means derived from SrcDir.
	CatapultDir     string
	PerfDir         string
	PageSetsDataDir string

	Vpython string
	Go      string
}

// NewPaths returns Paths rooted at srcDir with default binaries.
func NewPaths(srcDir string) Paths {
	return Paths{
		SrcDir:  srcDir,
		Vpython: "vpython3",
		Go:      "go",
	}
}

// Catapult returns the catapult checkout directory.
func (p Paths) Catapult() string {
	if p.CatapultDir != "" {
		return p.CatapultDir
	}

	return filepath.Join(p.SrcDir, "third_party", "catapult")
}

// WebPageReplay returns the web_page_replay_go directory that hosts
// the httparchive tool.
func (p Paths) WebPageReplay() string {
	return filepath.Join(p.Catapult(), "web_page_replay_go")
}

// Perf returns the Chromium tools/perf directory.
func (p Paths) Perf() string {
	if p.PerfDir != "" {
		return p.PerfDir
	}

	return filepath.Join(p.SrcDir, "tools", "perf")
}

// PageSetsData returns the directory the recorder writes archives to.
func (p Paths) PageSetsData() string {
	if p.PageSetsDataDir != "" {
		return p.PageSetsDataDir
	}

	return filepath.Join(p.Perf(), "page_sets", "data")
}

// RecordWpr returns the path of the record_wpr runner script.
func (p Paths) RecordWpr() string {
	return filepath.Join(p.Perf(), "record_wpr")
}
