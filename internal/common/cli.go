package common

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

// NewLogger builds the JSON (or text) stderr logger selected by the
// --quiet, --verbose and --log-format flags.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if c.String("log-format") == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// LoadConfig reads --config (if given), applies every explicitly set flag
// on top and finalizes the result.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg := models.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	stringFlags := map[string]*string{
		"input-dir":    &cfg.InputDir,
		"output-dir":   &cfg.OutputDir,
		"manifest-dir": &cfg.ManifestDir,
		"sample-dir":   &cfg.SampleDir,
		"work-dir":     &cfg.WorkDir,
		"ledger":       &cfg.LedgerPath,
		"language":     &cfg.Language,
		"dedup-index":  &cfg.DedupIndex,
		"stopwords":    &cfg.Stopwords,
		"vocabulary":   &cfg.Vocabulary,
	}
	for flag, dst := range stringFlags {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}

	intFlags := map[string]*int{
		"workers":         &cfg.Workers,
		"max-tasks":       &cfg.MaxTasksPerWorker,
		"min-length":      &cfg.MinLength,
		"sample-size":     &cfg.SampleSize,
		"max-chunk-bytes": &cfg.MaxChunkBytes,
	}
	for flag, dst := range intFlags {
		if c.IsSet(flag) {
			*dst = c.Int(flag)
		}
	}

	boolFlags := map[string]*bool{
		"sample":            &cfg.Samples,
		"dedup":             &cfg.Dedup,
		"dedup-report":      &cfg.DedupReport,
		"update-timestamps": &cfg.UpdateTimestamps,
		"low-accuracy":      &cfg.LowAccuracy,
	}
	for flag, dst := range boolFlags {
		if c.IsSet(flag) {
			*dst = c.Bool(flag)
		}
	}

	if c.IsSet("metrics") {
		cfg.Metrics = SplitList(c.StringSlice("metrics"))
	}
	if c.IsSet("name") {
		cfg.Names = SplitList(c.StringSlice("name"))
	}
	if c.IsSet("language-candidates") {
		cfg.LanguageCandidates = SplitList(c.StringSlice("language-candidates"))
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
