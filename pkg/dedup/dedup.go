// Package dedup finds exact-duplicate documents by content fingerprint.
package dedup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"github.com/dtnitsch/corpus-postprocessor/internal/common"
	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
)

// Result is the outcome of a duplicate pre-pass. Duplicates holds the
// index of every document whose text already occurred earlier in the
// dataset; the first occurrence is never in the set.
type Result struct {
	Duplicates map[int]struct{}
	Total      int
	NonUnique  []Entry
}

// IsDuplicate reports whether the document at index should be dropped.
func (r *Result) IsDuplicate(index int) bool {
	if r == nil {
		return false
	}
	_, ok := r.Duplicates[index]
	return ok
}

// Detector runs the duplicate pre-pass over a dataset.
type Detector struct {
	// NewIndex builds a fresh fingerprint index per run. Nil means an
	// in-memory index.
	NewIndex func(track bool) (Index, error)
	// Report keeps every non-unique entry for the audit report.
	Report bool
	Logger *slog.Logger
}

// Detect iterates src from the start and returns the duplicate set and the
// number of documents seen. It opens its own cursor, so src must be
// replayable when the analysis pass follows.
func (d *Detector) Detect(ctx context.Context, src dataset.Source) (*Result, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newIndex := d.NewIndex
	if newIndex == nil {
		newIndex = func(track bool) (Index, error) { return NewMemoryIndex(track), nil }
	}

	idx, err := newIndex(d.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint index: %w", err)
	}
	defer idx.Close()

	logger.Info("Gathering document fingerprints", "dataset", src.Name())

	res := &Result{Duplicates: map[int]struct{}{}}
	err = dataset.Each(src, func(doc models.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := Entry{
			Index:      doc.Index,
			Hash:       common.ContentHash([]byte(doc.Text)),
			Characters: utf8.RuneCountInString(doc.Text),
			Identifier: Identifier(doc.Meta),
		}
		dup, err := idx.Add(ctx, e)
		if err != nil {
			return err
		}
		if dup {
			res.Duplicates[doc.Index] = struct{}{}
		}
		res.Total++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate pre-pass over %s: %w", src.Name(), err)
	}

	if d.Report {
		res.NonUnique, err = idx.NonUnique(ctx)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Duplicate pre-pass finished",
		"dataset", src.Name(),
		"documents", res.Total,
		"duplicates", len(res.Duplicates))
	return res, nil
}

// Identifier names a document in the audit report: its url, else its
// name, else "-".
func Identifier(meta *models.Meta) string {
	if url := meta.String("url"); url != "" {
		return url
	}
	if name := meta.String("name"); name != "" {
		return name
	}
	return "-"
}

// WriteReport writes entries as tab-separated rows with a header.
func WriteReport(w io.Writer, entries []Entry) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	if err := tw.Write([]string{"index", "hash", "characters", "identifier", "is_duplicated"}); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			strconv.Itoa(e.Index),
			e.Hash,
			strconv.Itoa(e.Characters),
			e.Identifier,
			strconv.FormatBool(e.Duplicate),
		}
		if err := tw.Write(row); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}
