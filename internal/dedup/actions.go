package dedup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/corpus-postprocessor/internal/common"
	"github.com/dtnitsch/corpus-postprocessor/internal/process"
	dedupkg "github.com/dtnitsch/corpus-postprocessor/pkg/dedup"
	"github.com/dtnitsch/corpus-postprocessor/pkg/storage"
)

// DedupAction runs only the duplicate pre-pass over the selected datasets
// and prints a summary table. With --dedup-report the audit table of every
// non-unique document is written next to the outputs.
func DedupAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	datasets, err := process.Datasets(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if len(datasets) == 0 {
		fmt.Println("No datasets found")
		return nil
	}

	s := &storage.Storage{}
	workDir := filepath.Join(cfg.WorkDir, "dedup")
	defer func() { _ = s.RemoveAll(workDir) }()

	fmt.Printf("%-30s %-12s %-12s %-8s\n", "Dataset", "Documents", "Duplicates", "Share")
	fmt.Println(strings.Repeat("-", 66))

	failed := 0
	for _, ds := range datasets {
		d := &dedupkg.Detector{Report: cfg.DedupReport, Logger: logger}
		if cfg.DedupIndex == "sqlite" {
			path := filepath.Join(workDir, ds.Name+".db")
			d.NewIndex = func(track bool) (dedupkg.Index, error) {
				if err := os.MkdirAll(workDir, 0750); err != nil {
					return nil, err
				}
				return dedupkg.NewSQLiteIndex(path, track)
			}
		}

		res, err := d.Detect(c.Context, ds.Source)
		if err != nil {
			logger.Error("Duplicate detection failed", "dataset", ds.Name, "error", err)
			failed++
			continue
		}

		share := 0.0
		if res.Total > 0 {
			share = 100 * float64(len(res.Duplicates)) / float64(res.Total)
		}
		fmt.Printf("%-30s %-12s %-12s %6.2f%%\n",
			common.Truncate(ds.Name, 30),
			humanize.Comma(int64(res.Total)),
			humanize.Comma(int64(len(res.Duplicates))),
			share)

		if cfg.DedupReport {
			var buf bytes.Buffer
			if err := dedupkg.WriteReport(&buf, res.NonUnique); err != nil {
				return fmt.Errorf("failed to render duplicate report: %w", err)
			}
			path := filepath.Join(cfg.OutputDir, ds.Name+".duplicates.tsv")
			if err := s.SaveFile(path, buf.Bytes()); err != nil {
				return err
			}
			logger.Info("Duplicate report written", "dataset", ds.Name, "path", path, "rows", len(res.NonUnique))
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d datasets failed", failed, len(datasets)), 1)
	}
	return nil
}
