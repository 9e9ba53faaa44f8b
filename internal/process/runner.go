package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/archive"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
	"github.com/dtnitsch/corpus-postprocessor/pkg/db"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dedup"
	"github.com/dtnitsch/corpus-postprocessor/pkg/manifest"
	"github.com/dtnitsch/corpus-postprocessor/pkg/pipeline"
	"github.com/dtnitsch/corpus-postprocessor/pkg/storage"
)

// Runner post-processes datasets one after another. A failed dataset is
// logged, recorded and cleaned up; the next one still runs.
type Runner struct {
	Config      *models.Config
	Logger      *slog.Logger
	Storage     *storage.Storage
	Ledger      *db.DB
	Engines     annotate.EngineFactory
	Identifiers annotate.IdentifierFactory
	RunID       string
	Now         func() time.Time
}

// Report is the outcome of one dataset.
type Report struct {
	Dataset  string
	Outcome  *pipeline.Outcome
	Archive  string
	Manifest string
	Err      error
}

// RunAll processes every dataset and returns one report per dataset.
func (r *Runner) RunAll(ctx context.Context, datasets []dataset.Dataset) []Report {
	reports := make([]Report, 0, len(datasets))
	for _, ds := range datasets {
		if ctx.Err() != nil {
			reports = append(reports, Report{Dataset: ds.Name, Err: ctx.Err()})
			continue
		}
		reports = append(reports, r.Process(ctx, ds))
	}

	runDir := filepath.Join(r.Config.WorkDir, r.RunID)
	if err := r.Storage.RemoveAll(runDir); err != nil {
		r.Logger.Warn("Failed to remove work directory", "path", runDir, "error", err)
	}
	// Only succeeds when no other run is using the work directory.
	_ = os.Remove(r.Config.WorkDir)
	return reports
}

// Process runs the duplicate pre-pass and the analysis pass for one dataset
// and publishes the archive, manifest and sample.
func (r *Runner) Process(ctx context.Context, ds dataset.Dataset) Report {
	cfg := r.Config
	logger := r.Logger.With("dataset", ds.Name)
	rep := Report{Dataset: ds.Name}
	started := r.now()

	var ledgerID int64
	if r.Ledger != nil {
		id, err := r.Ledger.StartRun(r.RunID, ds.Name, strings.Join(r.families(), ","), cfg.Workers, started)
		if err != nil {
			logger.Warn("Failed to record run start", "error", err)
		}
		ledgerID = id
	}

	workDir := filepath.Join(cfg.WorkDir, r.RunID, ds.Name)
	defer func() {
		if err := r.Storage.RemoveAll(workDir); err != nil {
			logger.Warn("Failed to remove work directory", "path", workDir, "error", err)
		}
	}()

	logger.Info("Processing dataset", "run_id", r.RunID)
	out, err := r.process(ctx, logger, ds, workDir, &rep)
	rep.Outcome = out
	rep.Err = err

	if err != nil {
		logger.Error("Dataset failed", "error", err)
	}
	if r.Ledger != nil && ledgerID != 0 {
		res := db.RunResult{Status: db.StatusSuccess, FinishedAt: r.now()}
		if out != nil {
			res.Total = out.Seen
			res.Accepted = out.Accepted
			res.FileSize = out.FileSize
			res.Skips = out.Skips
		}
		if err != nil {
			res.Status = db.StatusFailed
			res.Error = err.Error()
		}
		if lerr := r.Ledger.FinishRun(ledgerID, res); lerr != nil {
			logger.Warn("Failed to record run result", "error", lerr)
		}
	}
	return rep
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, ds dataset.Dataset, workDir string, rep *Report) (*pipeline.Outcome, error) {
	cfg := r.Config

	if cfg.Dedup && !dataset.Replayable(ds.Source) {
		return nil, fmt.Errorf("duplicate detection needs two passes over %s: %w", ds.Name, dataset.ErrNotReplayable)
	}

	prior, err := r.priorManifest(ds.Name)
	if err != nil {
		return nil, err
	}

	var dups *dedup.Result
	total := 0
	if cfg.Dedup {
		dups, err = r.detect(ctx, logger, ds, workDir)
		if err != nil {
			return nil, err
		}
		total = dups.Total
	}

	archivePath := filepath.Join(workDir, ds.Name+".jsonl.zst")
	writer, err := archive.NewWriter(archivePath)
	if err != nil {
		return nil, err
	}

	coord := pipeline.New(pipeline.Config{
		Workers:           cfg.Workers,
		MaxTasksPerWorker: cfg.MaxTasksPerWorker,
		MaxChunkBytes:     cfg.MaxChunkBytes,
		MinLength:         cfg.MinLength,
		Language:          cfg.Language,
		Stats:             cfg.Has(models.FamilyStats),
		Lang:              cfg.Has(models.FamilyLang),
		Quality:           cfg.Has(models.FamilyQuality),
		TrackQuality:      prior.HasQuality(),
		SampleSize:        r.sampleSize(),
		Total:             total,
	}, r.Engines, r.Identifiers, logger)

	out, err := coord.Run(ctx, ds.Source, dups, writer)
	if err != nil {
		if aerr := writer.Abort(); aerr != nil {
			logger.Warn("Failed to discard temporary archive", "error", aerr)
		}
		return nil, err
	}

	if err := prior.Apply(manifest.Update{
		Stats:            out.Stats,
		FileSize:         out.FileSize,
		RunID:            r.RunID,
		Now:              r.now(),
		UpdateTimestamps: cfg.UpdateTimestamps,
	}); err != nil {
		return out, err
	}
	rep.Archive = filepath.Join(cfg.OutputDir, ds.Name+".jsonl.zst")
	rep.Manifest = filepath.Join(cfg.ManifestDir, ds.Name+".manifest")
	if err := r.publish(writer.Path(), rep.Archive, rep.Manifest, prior); err != nil {
		return out, err
	}
	logger.Debug("Archive published", "path", rep.Archive, "records", writer.Count())

	if cfg.Samples {
		if err := r.writeSample(ds.Name, out.Samples); err != nil {
			return out, err
		}
	}

	logger.Info("Dataset published",
		"archive", rep.Archive,
		"archive_size", humanize.Bytes(uint64(out.FileSize)),
		"manifest", rep.Manifest,
		"documents", out.Accepted)
	return out, nil
}

// priorManifest loads the existing manifest from the manifest directory,
// falling back to one shipped next to the dataset.
func (r *Runner) priorManifest(name string) (*manifest.Manifest, error) {
	for _, dir := range []string{r.Config.ManifestDir, r.Config.InputDir} {
		path := filepath.Join(dir, name+".manifest")
		stats, err := r.Storage.GetFileStats(path)
		if err != nil || stats.IsDir {
			continue
		}
		return manifest.Load(path, r.Storage)
	}
	return manifest.New(), nil
}

// publish puts the committed archive and the updated manifest in place.
// The archive is staged next to its destination first and only renamed
// over the old one after the manifest is saved; if that rename fails the
// previous manifest is restored. Either way the published pair matches.
func (r *Runner) publish(archivePath, dst, manifestPath string, m *manifest.Manifest) error {
	staged := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+r.RunID+".tmp")
	if err := r.Storage.MoveFile(archivePath, staged); err != nil {
		return err
	}
	published := false
	defer func() {
		if !published {
			_ = os.Remove(staged)
		}
	}()

	previous, prevErr := r.Storage.ReadFile(manifestPath)
	if err := m.Save(manifestPath, r.Storage); err != nil {
		return err
	}
	if err := r.Storage.MoveFile(staged, dst); err != nil {
		if prevErr == nil {
			_ = r.Storage.SaveFile(manifestPath, previous)
		} else {
			_ = os.Remove(manifestPath)
		}
		return err
	}
	published = true
	return nil
}

func (r *Runner) detect(ctx context.Context, logger *slog.Logger, ds dataset.Dataset, workDir string) (*dedup.Result, error) {
	cfg := r.Config
	d := &dedup.Detector{Report: cfg.DedupReport, Logger: logger}
	if cfg.DedupIndex == "sqlite" {
		d.NewIndex = func(track bool) (dedup.Index, error) {
			if err := os.MkdirAll(workDir, 0750); err != nil {
				return nil, err
			}
			return dedup.NewSQLiteIndex(filepath.Join(workDir, "fingerprints.db"), track)
		}
	}

	res, err := d.Detect(ctx, ds.Source)
	if err != nil {
		if errors.Is(err, dataset.ErrNotReplayable) {
			return nil, fmt.Errorf("duplicate detection needs a replayable source: %w", err)
		}
		return nil, err
	}

	if cfg.DedupReport {
		var buf bytes.Buffer
		if err := dedup.WriteReport(&buf, res.NonUnique); err != nil {
			return nil, fmt.Errorf("failed to render duplicate report: %w", err)
		}
		path := filepath.Join(cfg.OutputDir, ds.Name+".duplicates.tsv")
		if err := r.Storage.SaveFile(path, buf.Bytes()); err != nil {
			return nil, err
		}
		logger.Info("Duplicate report written", "path", path, "rows", len(res.NonUnique))
	}
	return res, nil
}

func (r *Runner) sampleSize() int {
	if !r.Config.Samples {
		return 0
	}
	return r.Config.SampleSize
}

func (r *Runner) writeSample(name string, samples []archive.Record) error {
	if samples == nil {
		samples = []archive.Record{}
	}
	data, err := json.MarshalIndent(samples, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	path := filepath.Join(r.Config.SampleDir, name+".sample")
	return r.Storage.SaveFile(path, data)
}

func (r *Runner) families() []string {
	var out []string
	for _, f := range []string{models.FamilyStats, models.FamilyQuality, models.FamilyLang} {
		if r.Config.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
