// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FilterPolicy selects how spec files are discovered under SpecsConfig.Dir.
type FilterPolicy string

const (
	// FilterExcludePrefix accepts every Markdown file except those whose
	// name starts with SpecsConfig.ExcludePrefix (e.g. "_index.md").
	FilterExcludePrefix FilterPolicy = "exclude-prefix"

	// FilterGlob accepts files whose slash-separated path relative to
	// SpecsConfig.Dir matches SpecsConfig.Pattern (e.g. "**/spec-*.md").
	FilterGlob FilterPolicy = "glob"
)

// SpecsConfig holds settings for requirement extraction.
type SpecsConfig struct {
	// Dir is the root of the specification documents (default docs/specs).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Policy selects the file filter: exclude-prefix or glob.
	Policy FilterPolicy `json:"policy" yaml:"policy" mapstructure:"policy"`

	// ExcludePrefix is the file-name prefix marking internal documents (default "_").
	ExcludePrefix string `json:"exclude_prefix" yaml:"exclude_prefix" mapstructure:"exclude_prefix"`

	// Pattern is the doublestar glob used by the glob policy.
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`

	// Workers bounds concurrent file reads (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// TestsConfig holds settings for test discovery and execution.
type TestsConfig struct {
	// Dir is the root scanned for *_test.go files (default ".").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Run executes `go test -json` before reconciliation.
	Run bool `json:"run" yaml:"run" mapstructure:"run"`

	// Match is passed to go test -run when set.
	Match string `json:"match,omitempty" yaml:"match,omitempty" mapstructure:"match"`

	// Packages are the package patterns handed to go test (default ./...).
	Packages []string `json:"packages" yaml:"packages" mapstructure:"packages"`

	// Timeout is passed to go test -timeout; a timed-out run is reported as error.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// ExcludeDirs are directory names skipped during discovery.
	ExcludeDirs []string `json:"exclude_dirs" yaml:"exclude_dirs" mapstructure:"exclude_dirs"`
}

// HistoryConfig holds settings for the run history database.
type HistoryConfig struct {
	// Enabled records every verify run.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir contains the history database (default .spectrace).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// MetricsConfig holds settings for the Prometheus textfile export and
// Pushgateway push.
type MetricsConfig struct {
	// File is the textfile written after each run; empty disables export.
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// PushURL is a Prometheus Pushgateway base URL; empty disables pushing.
	PushURL string `json:"push_url,omitempty" yaml:"push_url,omitempty" mapstructure:"push_url"`

	// Job is the Pushgateway job label (default spectrace).
	Job string `json:"job,omitempty" yaml:"job,omitempty" mapstructure:"job"`

	// SecretsDir holds pushgateway-username and pushgateway-password files
	// for basic auth (default .secrets).
	SecretsDir string `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty" mapstructure:"secrets_dir"`
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	// Debounce is how long to wait for more changes before re-verifying.
	Debounce time.Duration `json:"debounce" yaml:"debounce" mapstructure:"debounce"`

	// Extensions lists the file extensions that trigger a run.
	Extensions []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`
}

// Config groups all settings for a verification run.
type Config struct {
	Specs   SpecsConfig   `json:"specs" yaml:"specs" mapstructure:"specs"`
	Tests   TestsConfig   `json:"tests" yaml:"tests" mapstructure:"tests"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Watch   WatchConfig   `json:"watch" yaml:"watch" mapstructure:"watch"`

	// FailOnMissing makes missing requirements fail the run (exit 2).
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing" mapstructure:"fail_on_missing"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() Config {
	return Config{
		Specs: SpecsConfig{
			Dir:           "docs/specs",
			Policy:        FilterExcludePrefix,
			ExcludePrefix: "_",
			Pattern:       "**/spec-*.md",
			Workers:       4,
		},
		Tests: TestsConfig{
			Dir:         ".",
			Packages:    []string{"./..."},
			Timeout:     10 * time.Minute,
			ExcludeDirs: []string{".git", "vendor", "node_modules", "testdata"},
		},
		History: HistoryConfig{
			Dir: ".spectrace",
		},
		Metrics: MetricsConfig{
			Job:        "spectrace",
			SecretsDir: ".secrets",
		},
		Watch: WatchConfig{
			Debounce:   500 * time.Millisecond,
			Extensions: []string{".md", ".go"},
		},
		FailOnMissing: true,
	}
}
