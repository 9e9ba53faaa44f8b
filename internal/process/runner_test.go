package process

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/archive"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
	"github.com/dtnitsch/corpus-postprocessor/pkg/db"
	"github.com/dtnitsch/corpus-postprocessor/pkg/engine"
	"github.com/dtnitsch/corpus-postprocessor/pkg/storage"
)

const paragraph = "Kraków jest jednym z najstarszych miast w Polsce. Jego historia sięga wczesnego średniowiecza, a zabytki przyciągają turystów z całego świata."

func newRunner(t *testing.T, root string) *Runner {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.InputDir = filepath.Join(root, "in")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.ManifestDir = ""
	cfg.SampleDir = filepath.Join(root, "samples")
	cfg.WorkDir = filepath.Join(root, "work")
	cfg.Metrics = []string{models.FamilyStats, models.FamilyQuality}
	cfg.MinLength = 40
	cfg.Workers = 2
	cfg.Samples = true
	cfg.SampleSize = 1
	cfg.DedupReport = true
	cfg.UpdateTimestamps = true
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	ledger, err := db.Open(filepath.Join(root, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })

	return &Runner{
		Config:  cfg,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Storage: &storage.Storage{},
		Ledger:  ledger,
		Engines: engine.Factory(engine.Config{Language: "pl"}),
		RunID:   "01TESTRUN",
		Now:     func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func writeDataset(t *testing.T, path string, texts ...string) {
	t.Helper()
	w, err := archive.NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		meta := models.NewMeta()
		meta.Set("name", filepath.Base(path)+"#"+string(rune('0'+i)))
		if err := w.Append(text, meta); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessPublishesOutputs(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)

	writeDataset(t, filepath.Join(r.Config.InputDir, "wiki.jsonl.zst"),
		paragraph,
		paragraph,
		"za krótki",
		strings.Repeat("Wisła płynie przez Kraków i Warszawę. ", 3),
	)
	prior := `{"project":"wiki","creation_date":"2023-01-01 00:00:00"}`
	if err := os.WriteFile(filepath.Join(r.Config.InputDir, "wiki.manifest"), []byte(prior), 0644); err != nil {
		t.Fatal(err)
	}

	datasets, err := dataset.Discover(r.Config.InputDir)
	if err != nil {
		t.Fatal(err)
	}
	reports := r.RunAll(context.Background(), datasets)
	if len(reports) != 1 || reports[0].Err != nil {
		t.Fatalf("reports = %+v", reports)
	}
	rep := reports[0]
	if rep.Outcome.Accepted != 2 || rep.Outcome.Skips["duplicate"] != 1 || rep.Outcome.Skips["too_short"] != 1 {
		t.Errorf("outcome = %+v", rep.Outcome)
	}

	// archive
	rd, err := archive.Open(filepath.Join(r.Config.OutputDir, "wiki.jsonl.zst"))
	if err != nil {
		t.Fatalf("archive not published: %v", err)
	}
	n := 0
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if rec.Meta.Metrics == nil && rec.Meta.Numeric()["words"] == 0 {
			t.Errorf("archived document without metrics: %+v", rec.Meta)
		}
		if rec.Meta.Quality == "" {
			t.Error("archived document without quality label")
		}
		n++
	}
	rd.Close()
	if n != 2 {
		t.Errorf("archive holds %d documents, want 2", n)
	}

	// manifest
	data, err := os.ReadFile(filepath.Join(r.Config.OutputDir, "wiki.manifest"))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	stats, _ := m["stats"].(map[string]any)
	if m["project"] != "wiki" || stats["documents"] != float64(2) || m["run_id"] != "01TESTRUN" {
		t.Errorf("manifest = %s", data)
	}
	if m["creation_date"] != "2023-01-01 00:00:00" || m["updated_date"] != "2024-06-01 12:00:00" {
		t.Errorf("manifest dates = %v, %v", m["creation_date"], m["updated_date"])
	}
	if _, ok := stats["quality"]; !ok {
		t.Error("manifest stats missing quality")
	}

	// sample and duplicate report
	var sample []map[string]any
	data, err = os.ReadFile(filepath.Join(r.Config.SampleDir, "wiki.sample"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &sample); err != nil || len(sample) != 1 {
		t.Errorf("sample = %s (%v)", data, err)
	}
	report, err := os.ReadFile(filepath.Join(r.Config.OutputDir, "wiki.duplicates.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(report)), "\n"); len(lines) != 3 {
		t.Errorf("duplicate report has %d lines, want header + 2", len(lines))
	}

	// work directory removed, ledger updated
	if _, err := os.Stat(r.Config.WorkDir); !os.IsNotExist(err) {
		t.Errorf("work directory still present: %v", err)
	}
	runs, err := r.Ledger.ListRuns(0, "wiki", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != db.StatusSuccess || runs[0].Accepted != 2 || runs[0].Skips["duplicate"] != 1 {
		t.Errorf("ledger = %+v", runs)
	}
}

func TestFailedDatasetDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)
	r.Config.Samples = false

	okPath := filepath.Join(r.Config.InputDir, "ok.jsonl.zst")
	writeDataset(t, okPath, paragraph)

	input := strings.NewReader(`{"text":"` + paragraph + `"}` + "\n")
	stream := dataset.NewStreamSource("stream", input)
	datasets := []dataset.Dataset{
		{Name: "stream", Path: "-", Source: stream},
		{Name: "ok", Path: okPath, Source: dataset.NewFileSource("ok", okPath)},
	}

	reports := r.RunAll(context.Background(), datasets)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if !errors.Is(reports[0].Err, dataset.ErrNotReplayable) {
		t.Errorf("stream error = %v, want ErrNotReplayable", reports[0].Err)
	}
	if reports[1].Err != nil {
		t.Errorf("ok dataset failed: %v", reports[1].Err)
	}
	if input.Len() == 0 {
		t.Error("stream was consumed before the replay check failed")
	}

	if _, err := os.Stat(filepath.Join(r.Config.OutputDir, "stream.manifest")); !os.IsNotExist(err) {
		t.Error("manifest written for failed dataset")
	}
	if _, err := os.Stat(filepath.Join(r.Config.OutputDir, "stream.jsonl.zst")); !os.IsNotExist(err) {
		t.Error("archive published for failed dataset")
	}

	failed, err := r.Ledger.ListRuns(0, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Dataset != "stream" {
		t.Errorf("failed runs = %+v", failed)
	}
}

func TestProcessKeepsPriorManifestOnFailure(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)
	r.Engines = nil // stats requested without an engine: every worker fails to start

	path := filepath.Join(r.Config.InputDir, "wiki.jsonl.zst")
	writeDataset(t, path, paragraph)
	manifestPath := filepath.Join(r.Config.OutputDir, "wiki.manifest")
	if err := (&storage.Storage{}).SaveFile(manifestPath, []byte(`{"project":"old"}`)); err != nil {
		t.Fatal(err)
	}

	rep := r.Process(context.Background(), dataset.Dataset{Name: "wiki", Path: path, Source: dataset.NewFileSource("wiki", path)})
	if rep.Err == nil {
		t.Fatal("Process() succeeded without an engine")
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"project":"old"}` {
		t.Errorf("prior manifest modified: %s", data)
	}
}

func TestProcessStreamWithoutDedup(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)
	r.Config.Dedup = false
	r.Config.DedupReport = false

	body := `{"text":"` + paragraph + `","meta":{"name":"a"}}` + "\n" + `{"text":"` + paragraph + `","meta":{"name":"b"}}` + "\n"
	src := dataset.NewStreamSource("stdin", strings.NewReader(body))

	rep := r.Process(context.Background(), dataset.Dataset{Name: "stdin", Path: "-", Source: src})
	if rep.Err != nil {
		t.Fatalf("Process() error = %v", rep.Err)
	}
	if rep.Outcome.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2 (no duplicate filtering)", rep.Outcome.Accepted)
	}
	if _, err := os.Stat(filepath.Join(r.Config.OutputDir, "stdin.jsonl.zst")); err != nil {
		t.Errorf("archive not published: %v", err)
	}
}

func TestCheckStdin(t *testing.T) {
	tests := []struct {
		name    string
		stdin   bool
		dedup   bool
		wantErr bool
	}{
		{"stdin with dedup", true, true, true},
		{"stdin without dedup", true, false, false},
		{"files with dedup", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultConfig()
			cfg.Dedup = tt.dedup
			err := checkStdin(tt.stdin, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkStdin() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, dataset.ErrNotReplayable) {
				t.Errorf("checkStdin() error = %v, want ErrNotReplayable", err)
			}
		})
	}
}

func tempLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestProcessKeepsOldArchiveWhenManifestSaveFails(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)
	r.Config.Samples = false

	path := filepath.Join(r.Config.InputDir, "wiki.jsonl.zst")
	writeDataset(t, path, paragraph)
	published := filepath.Join(r.Config.OutputDir, "wiki.jsonl.zst")
	if err := r.Storage.SaveFile(published, []byte("old archive")); err != nil {
		t.Fatal(err)
	}
	// A regular file where the manifest directory should be.
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	r.Config.ManifestDir = filepath.Join(blocker, "manifests")

	rep := r.Process(context.Background(), dataset.Dataset{Name: "wiki", Path: path, Source: dataset.NewFileSource("wiki", path)})
	if rep.Err == nil {
		t.Fatal("Process() succeeded with an unwritable manifest directory")
	}
	data, err := os.ReadFile(published)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old archive" {
		t.Error("archive replaced although the manifest was not saved")
	}
	if left := tempLeftovers(t, r.Config.OutputDir); len(left) != 0 {
		t.Errorf("staged files left in output: %v", left)
	}
}

func TestProcessRestoresManifestWhenArchiveMoveFails(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, root)
	r.Config.Samples = false

	path := filepath.Join(r.Config.InputDir, "wiki.jsonl.zst")
	writeDataset(t, path, paragraph)
	manifestPath := filepath.Join(r.Config.OutputDir, "wiki.manifest")
	if err := r.Storage.SaveFile(manifestPath, []byte(`{"project":"old"}`)); err != nil {
		t.Fatal(err)
	}
	// A non-empty directory at the archive path cannot be renamed over.
	if err := r.Storage.SaveFile(filepath.Join(r.Config.OutputDir, "wiki.jsonl.zst", "keep"), []byte("x")); err != nil {
		t.Fatal(err)
	}

	rep := r.Process(context.Background(), dataset.Dataset{Name: "wiki", Path: path, Source: dataset.NewFileSource("wiki", path)})
	if rep.Err == nil {
		t.Fatal("Process() succeeded although the archive could not be published")
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"project":"old"}` {
		t.Errorf("manifest = %s, want the previous manifest restored", data)
	}
	if left := tempLeftovers(t, r.Config.OutputDir); len(left) != 0 {
		t.Errorf("staged files left in output: %v", left)
	}
}
