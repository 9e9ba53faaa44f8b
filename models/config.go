// Package models defines data structures for documents, metrics and configuration.
package models

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metric families selectable with --metrics.
const (
	FamilyStats   = "stats"
	FamilyQuality = "quality"
	FamilyLang    = "lang"
)

// Config holds runtime configuration for a post-processing run.
// Values come from an optional YAML file, overridden by CLI flags.
type Config struct {
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	ManifestDir string `yaml:"manifest_dir"`
	SampleDir   string `yaml:"sample_dir"`
	WorkDir     string `yaml:"work_dir"`
	LedgerPath  string `yaml:"ledger_path"`

	Names   []string `yaml:"names"`
	Metrics []string `yaml:"metrics"`

	Workers           int    `yaml:"workers"`
	MaxTasksPerWorker int    `yaml:"max_tasks_per_worker"`
	MinLength         int    `yaml:"min_length"`
	Language          string `yaml:"language"`
	MaxChunkBytes     int    `yaml:"max_chunk_bytes"`

	// Language identification candidates (ISO 639-1); empty means every
	// language lingua knows.
	LanguageCandidates []string `yaml:"language_candidates"`
	LowAccuracy        bool     `yaml:"low_accuracy"`
	// Optional word lists for the built-in engine, one word per line.
	Stopwords  string `yaml:"stopwords"`
	Vocabulary string `yaml:"vocabulary"`

	Samples    bool `yaml:"samples"`
	SampleSize int  `yaml:"sample_size"`

	Dedup       bool   `yaml:"dedup"`
	DedupReport bool   `yaml:"dedup_report"`
	DedupIndex  string `yaml:"dedup_index"`

	UpdateTimestamps bool `yaml:"update_timestamps"`
}

// DefaultConfig returns the configuration used when no file or flag says otherwise.
func DefaultConfig() *Config {
	return &Config{
		InputDir:    "datasets",
		OutputDir:   "output",
		ManifestDir: "output",
		SampleDir:   "samples",
		WorkDir:     "data",
		LedgerPath:  "postprocessor.db",
		MinLength:   200,
		Language:    "pl",
		SampleSize:  5,
		Dedup:       true,
		DedupIndex:  "memory",
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Has reports whether a metric family is enabled. An empty list enables all.
func (c *Config) Has(family string) bool {
	if len(c.Metrics) == 0 {
		return true
	}
	for _, m := range c.Metrics {
		if strings.EqualFold(strings.TrimSpace(m), family) {
			return true
		}
	}
	return false
}

// Finalize fills derived defaults and validates the result.
func (c *Config) Finalize() error {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxTasksPerWorker <= 0 {
		if c.Has(FamilyStats) {
			c.MaxTasksPerWorker = 2000
		} else {
			c.MaxTasksPerWorker = 100000
		}
	}
	if c.MaxChunkBytes <= 0 {
		c.MaxChunkBytes = 100000
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 5
	}
	if c.ManifestDir == "" {
		c.ManifestDir = c.OutputDir
	}
	for _, m := range c.Metrics {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case FamilyStats, FamilyQuality, FamilyLang:
		default:
			return fmt.Errorf("unknown metric family %q (want stats, quality or lang)", m)
		}
	}
	switch c.DedupIndex {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown dedup index %q (want memory or sqlite)", c.DedupIndex)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("min_length must be >= 0, got %d", c.MinLength)
	}
	return nil
}

// Wants reports whether a dataset name passes the --name filter.
func (c *Config) Wants(name string) bool {
	if len(c.Names) == 0 {
		return true
	}
	for _, n := range c.Names {
		if n == name {
			return true
		}
	}
	return false
}
