package process

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/corpus-postprocessor/internal/common"
	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
	"github.com/dtnitsch/corpus-postprocessor/pkg/db"
	"github.com/dtnitsch/corpus-postprocessor/pkg/engine"
	"github.com/dtnitsch/corpus-postprocessor/pkg/langid"
	"github.com/dtnitsch/corpus-postprocessor/pkg/storage"
)

func ProcessAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	if err := checkStdin(c.Bool("stdin"), cfg); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	datasets, err := Datasets(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if len(datasets) == 0 {
		logger.Warn("No datasets to process", "input_dir", cfg.InputDir, "names", cfg.Names)
		return nil
	}

	engines, err := engineFactory(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	var ledger *db.DB
	if !c.Bool("no-ledger") {
		ledger, err = db.Open(cfg.LedgerPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open run ledger: %v", err), 2)
		}
		defer ledger.Close()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &Runner{
		Config:      cfg,
		Logger:      logger,
		Storage:     &storage.Storage{},
		Ledger:      ledger,
		Engines:     engines,
		Identifiers: langid.Factory(langid.Options{Languages: cfg.LanguageCandidates, LowAccuracy: cfg.LowAccuracy}),
		RunID:       ulid.Make().String(),
	}

	logger.Info("Starting post-processing",
		"run_id", runner.RunID,
		"datasets", len(datasets),
		"metrics", runner.families(),
		"workers", cfg.Workers,
		"dedup", cfg.Dedup)

	failed := 0
	for _, rep := range runner.RunAll(ctx, datasets) {
		if rep.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d datasets failed", failed, len(datasets)), 1)
	}
	logger.Info("Post-processing finished", "run_id", runner.RunID, "datasets", len(datasets))
	return nil
}

// checkStdin rejects --stdin while duplicate detection is on: the pre-pass
// would consume the stream and leave nothing for the analysis pass.
func checkStdin(stdin bool, cfg *models.Config) error {
	if stdin && cfg.Dedup {
		return fmt.Errorf("--stdin cannot be combined with duplicate detection: %w (pass --dedup=false)", dataset.ErrNotReplayable)
	}
	return nil
}

// Datasets resolves the datasets named by the flags: stdin when --stdin is
// set, otherwise everything discovered under the input directory that
// passes the name filter.
func Datasets(c *cli.Context, cfg *models.Config) ([]dataset.Dataset, error) {
	if c.Bool("stdin") {
		name := c.String("stdin-name")
		if name == "" {
			name = "stdin"
		}
		return []dataset.Dataset{{Name: name, Path: "-", Source: dataset.NewStreamSource(name, os.Stdin)}}, nil
	}

	found, err := dataset.Discover(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	var out []dataset.Dataset
	for _, ds := range found {
		if cfg.Wants(ds.Name) {
			out = append(out, ds)
		}
	}
	return out, nil
}

func engineFactory(cfg *models.Config) (annotate.EngineFactory, error) {
	ecfg := engine.Config{Language: cfg.Language}
	if cfg.Stopwords != "" {
		words, err := engine.LoadWordList(cfg.Stopwords)
		if err != nil {
			return nil, err
		}
		ecfg.Stopwords = words
	}
	if cfg.Vocabulary != "" {
		words, err := engine.LoadWordList(cfg.Vocabulary)
		if err != nil {
			return nil, err
		}
		ecfg.Vocabulary = words
	}
	return engine.Factory(ecfg), nil
}
