package runs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/corpus-postprocessor/internal/common"
	dbpkg "github.com/dtnitsch/corpus-postprocessor/pkg/db"
)

func RunsAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	database, err := dbpkg.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	runs, err := database.ListRuns(c.Int("limit"), c.String("dataset"), c.Bool("failed"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-26s %-20s %-20s %-8s %-10s %-10s %-10s %-10s\n",
		"Run", "Dataset", "Started", "Status", "Documents", "Accepted", "Size", "Duration")
	fmt.Println(strings.Repeat("-", 122))

	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%-26s %-20s %-20s %-8s %-10s %-10s %-10s %-10s\n",
			r.RunID,
			common.Truncate(r.Dataset, 20),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			humanize.Comma(int64(r.Total)),
			humanize.Comma(int64(r.Accepted)),
			humanize.Bytes(uint64(r.FileSize)),
			duration,
		)
		if c.Bool("verbose") {
			printDetails(r)
		}
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	return nil
}

func printDetails(r dbpkg.Run) {
	if r.Metrics != "" {
		fmt.Printf("    Metrics: %s\n", r.Metrics)
	}
	if len(r.Skips) > 0 {
		reasons := make([]string, 0, len(r.Skips))
		for reason := range r.Skips {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, reason := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, r.Skips[reason]))
		}
		fmt.Printf("    Skipped: %s\n", strings.Join(parts, ", "))
	}
	if r.Error != "" {
		fmt.Printf("    Error:   %s\n", r.Error)
	}
}
