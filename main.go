package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/corpus-postprocessor/internal/dedup"
	"github.com/dtnitsch/corpus-postprocessor/internal/process"
	"github.com/dtnitsch/corpus-postprocessor/internal/runs"
	"github.com/dtnitsch/corpus-postprocessor/pkg/help"
)

func main() {
	app := &cli.App{
		Name:  "postprocessor",
		Usage: "Deduplicate, annotate, filter and compact text corpora",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "process",
				Usage:  "Run the full post-processing pass over one or more datasets",
				Flags:  append(datasetFlags(), processFlags()...),
				Action: process.ProcessAction,
			},
			{
				Name:   "dedup",
				Usage:  "Run the duplicate pre-pass only and print duplicate counts",
				Flags:  datasetFlags(),
				Action: dedup.DedupAction,
			},
			{
				Name:  "runs",
				Usage: "List recorded post-processing runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ledger", Usage: "Path of the run ledger database"},
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of runs to show (0 for all)"},
					&cli.StringFlag{Name: "dataset", Usage: "Only show runs of this dataset"},
					&cli.BoolFlag{Name: "failed", Usage: "Only show failed runs"},
				},
				Action: runs.RunsAction,
			},
			{
				Name:  "quickstart",
				Usage: "Print a YAML quick-start reference",
				Action: func(c *cli.Context) error {
					fmt.Print(help.ColdstartYAML)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"POSTPROCESSOR_CONFIG"}},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug output"},
		&cli.StringFlag{Name: "log-format", Value: "json", Usage: "Log format: json or text"},
	}
}

// datasetFlags select datasets and control the duplicate pre-pass.
func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input-dir", Aliases: []string{"i"}, Usage: "Directory holding datasets (.jsonl, .jsonl.zst or directories of .txt/.html)"},
		&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for archives and reports"},
		&cli.StringFlag{Name: "work-dir", Usage: "Directory for temporary files"},
		&cli.StringSliceFlag{Name: "name", Aliases: []string{"n"}, Usage: "Only process these datasets (repeat or comma-separate)"},
		&cli.BoolFlag{Name: "stdin", Usage: "Read a single JSON-lines dataset from stdin (process requires --dedup=false)"},
		&cli.StringFlag{Name: "stdin-name", Value: "stdin", Usage: "Dataset name used with --stdin"},
		&cli.BoolFlag{Name: "dedup", Value: true, Usage: "Drop exact duplicates (keeps the first occurrence)"},
		&cli.BoolFlag{Name: "dedup-report", Usage: "Write <name>.duplicates.tsv listing every non-unique document"},
		&cli.StringFlag{Name: "dedup-index", Usage: "Fingerprint index: memory or sqlite (for datasets larger than memory)"},
	}
}

func processFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "manifest-dir", Usage: "Directory for manifests (default: output dir)"},
		&cli.StringFlag{Name: "sample-dir", Usage: "Directory for sample files"},
		&cli.StringFlag{Name: "ledger", Usage: "Path of the run ledger database"},
		&cli.BoolFlag{Name: "no-ledger", Usage: "Do not record runs"},
		&cli.StringSliceFlag{Name: "metrics", Aliases: []string{"m"}, Usage: "Metric families to compute: stats, quality, lang (default: all)"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Number of annotation workers (default: CPU count)"},
		&cli.IntFlag{Name: "max-tasks", Usage: "Documents per worker before its engine is reloaded"},
		&cli.IntFlag{Name: "min-length", Usage: "Drop documents with at most this many characters"},
		&cli.IntFlag{Name: "max-chunk-bytes", Usage: "Largest text chunk handed to the engine"},
		&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Required document language (ISO 639-1)"},
		&cli.StringSliceFlag{Name: "language-candidates", Usage: "Languages the identifier chooses from (default: all)"},
		&cli.BoolFlag{Name: "low-accuracy", Usage: "Faster, less accurate language identification"},
		&cli.StringFlag{Name: "stopwords", Usage: "Stopword list, one word per line"},
		&cli.StringFlag{Name: "vocabulary", Usage: "Vocabulary list; words outside it count as out-of-vocabulary"},
		&cli.BoolFlag{Name: "sample", Aliases: []string{"s"}, Usage: "Write the first accepted documents to <sample-dir>/<name>.sample"},
		&cli.IntFlag{Name: "sample-size", Usage: "Number of documents in a sample"},
		&cli.BoolFlag{Name: "update-timestamps", Aliases: []string{"u"}, Usage: "Set updated_date in the manifest"},
	}
}
