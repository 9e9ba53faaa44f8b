// Package pipeline runs the analysis pass of a dataset: documents fan out
// to a pool of annotating workers and the results are filtered, classified,
// aggregated and archived by a single consumer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/aggregate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/archive"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dedup"
	"github.com/dtnitsch/corpus-postprocessor/pkg/quality"
)

// ErrWorkerFatal aborts a run: a worker crashed or could not load its engine.
var ErrWorkerFatal = errors.New("worker failed")

// Skip reasons.
const (
	ReasonDuplicate       = "duplicate"
	ReasonTooShort        = "too_short"
	ReasonWrongLanguage   = "wrong_language"
	ReasonAnnotationError = "annotation_error"
)

// Config controls one analysis pass.
type Config struct {
	Workers           int
	MaxTasksPerWorker int
	MaxChunkBytes     int

	// Documents must be longer than MinLength characters.
	MinLength int
	// Language is the required language code when Lang is set.
	Language string

	Stats   bool
	Lang    bool
	Quality bool
	// TrackQuality counts quality tiers in the stats even when Quality is
	// off, using labels the documents already carry.
	TrackQuality bool

	SampleSize int

	// Total is the expected document count, used for progress only.
	Total            int
	ProgressInterval time.Duration
}

// Sink receives accepted documents. Commit is called once, after every
// result has been consumed.
type Sink interface {
	Append(text string, meta *models.Meta) error
	Commit() (int64, error)
}

// Outcome summarizes a finished pass.
type Outcome struct {
	Seen     int
	Accepted int
	Skips    map[string]int
	Degraded int
	Stats    *aggregate.Stats
	FileSize int64
	Samples  []archive.Record
}

// Coordinator drives the worker pool for one dataset at a time.
type Coordinator struct {
	cfg         Config
	engines     annotate.EngineFactory
	identifiers annotate.IdentifierFactory
	logger      *slog.Logger
}

// New builds a Coordinator. The factories are called once per worker
// lifetime; factories for disabled families may be nil.
func New(cfg Config, engines annotate.EngineFactory, identifiers annotate.IdentifierFactory, logger *slog.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxTasksPerWorker <= 0 {
		cfg.MaxTasksPerWorker = 2000
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, engines: engines, identifiers: identifiers, logger: logger}
}

// Run iterates src from the start, analyses every document in the pool and
// feeds accepted documents to sink. dups may be nil when duplicate
// detection is off. Sink is committed only after the pool has drained and
// only when no fatal error occurred; on error the caller discards it.
func (c *Coordinator) Run(ctx context.Context, src dataset.Source, dups *dedup.Result, sink Sink) (*Outcome, error) {
	logger := c.logger.With("dataset", src.Name())

	cur, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("analysis pass: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := make(chan models.Document, 2*c.cfg.Workers)
	results := make(chan result, 2*c.cfg.Workers)

	logger.Info("Starting analysis workers", "workers", c.cfg.Workers, "max_tasks_per_worker", c.cfg.MaxTasksPerWorker)
	var wg sync.WaitGroup
	for w := 1; w <= c.cfg.Workers; w++ {
		wg.Add(1)
		go c.worker(ctx, w, logger, &wg, jobs, results, cancel)
	}

	readErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		defer cur.Close()
		for {
			doc, err := cur.Next()
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				err = fmt.Errorf("read dataset: %w", err)
				cancel(err)
				readErr <- err
				return
			}
			select {
			case jobs <- doc:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	st := &state{
		agg:   aggregate.New(c.cfg.Quality || c.cfg.TrackQuality),
		out:   &Outcome{Skips: map[string]int{}},
		last:  time.Now(),
		start: time.Now(),
	}
	for r := range results {
		if ctx.Err() != nil {
			continue
		}
		if err := c.consume(logger, st, r, dups, sink); err != nil {
			cancel(err)
		}
	}

	if err := <-readErr; err != nil {
		return nil, err
	}
	if cause := context.Cause(ctx); cause != nil {
		return nil, cause
	}

	st.out.Accepted = st.agg.Documents()
	st.out.Stats = st.agg.Finalize()

	size, err := sink.Commit()
	if err != nil {
		return nil, fmt.Errorf("commit archive: %w", err)
	}
	st.out.FileSize = size

	logger.Info("Analysis finished",
		"documents", st.out.Seen,
		"accepted", st.out.Accepted,
		"skipped", st.out.Seen-st.out.Accepted,
		"archive_size", humanize.Bytes(uint64(size)),
		"elapsed", time.Since(st.start).Round(time.Millisecond).String())
	return st.out, nil
}

type state struct {
	agg   *aggregate.Aggregator
	out   *Outcome
	last  time.Time
	start time.Time
}

// consume applies the filter cascade to one result. Only archive failures
// are returned; everything else is a per-document skip.
func (c *Coordinator) consume(logger *slog.Logger, st *state, r result, dups *dedup.Result, sink Sink) error {
	st.out.Seen++
	c.progress(logger, st)

	skip := func(reason string, attrs ...any) {
		st.out.Skips[reason]++
		args := append([]any{"index", r.index, "document", r.meta.DisplayName(), "reason", reason}, attrs...)
		logger.Warn("Skipping document", args...)
	}

	if dups.IsDuplicate(r.index) {
		skip(ReasonDuplicate)
		return nil
	}
	if r.err != nil {
		skip(ReasonAnnotationError, "error", r.err)
		return nil
	}

	values := r.meta.Numeric()
	if r.text == "" || utf8.RuneCountInString(r.text) <= c.cfg.MinLength {
		skip(ReasonTooShort)
		return nil
	}
	if words, ok := values[models.MetricWords]; ok && words <= 0 {
		skip(ReasonTooShort)
		return nil
	}
	if c.cfg.Lang && c.cfg.Language != "" {
		if r.meta.Language == nil || r.meta.Language.Lang != c.cfg.Language {
			lang := ""
			if r.meta.Language != nil {
				lang = r.meta.Language.Lang
			}
			skip(ReasonWrongLanguage, "language", lang)
			return nil
		}
	}

	if c.cfg.Quality {
		label, err := quality.Assess(values)
		if err != nil {
			st.out.Degraded++
			logger.Warn("Quality classification degraded to LOW",
				"index", r.index, "document", r.meta.DisplayName(), "error", err)
		}
		r.meta.Quality = label
	}

	st.agg.Add(r.meta)
	if err := sink.Append(r.text, r.meta); err != nil {
		return fmt.Errorf("append to archive: %w", err)
	}
	if len(st.out.Samples) < c.cfg.SampleSize {
		st.out.Samples = append(st.out.Samples, archive.Record{Text: r.text, Meta: r.meta})
	}
	return nil
}

// progress logs an advisory line at most once per interval.
func (c *Coordinator) progress(logger *slog.Logger, st *state) {
	if time.Since(st.last) < c.cfg.ProgressInterval {
		return
	}
	st.last = time.Now()
	args := []any{"processed", humanize.Comma(int64(st.out.Seen)), "accepted", humanize.Comma(int64(st.agg.Documents()))}
	if c.cfg.Total > 0 {
		args = append(args, "total", humanize.Comma(int64(c.cfg.Total)),
			"percent", fmt.Sprintf("%.1f", 100*float64(st.out.Seen)/float64(c.cfg.Total)))
	}
	logger.Info("Progress", args...)
}
