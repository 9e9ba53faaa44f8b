// Package dataset provides re-iterable document sources and dataset discovery.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/archive"
)

// ErrNotReplayable is returned by Open on a source that has already been
// iterated and cannot be iterated again.
var ErrNotReplayable = errors.New("dataset source cannot be iterated twice")

// Cursor walks a source once. Next returns io.EOF after the last document.
type Cursor interface {
	Next() (models.Document, error)
	Close() error
}

// Source is an enumerable dataset. Each Open starts a fresh, independent
// iteration from the first document; indices restart at 0.
type Source interface {
	Name() string
	Open() (Cursor, error)
}

// Replayable reports whether src can be opened more than once. It checks
// without consuming anything, so callers can reject a two-pass run up front.
func Replayable(src Source) bool {
	if r, ok := src.(interface{ Replayable() bool }); ok {
		return r.Replayable()
	}
	return true
}

// Each iterates a fresh cursor over src and calls fn for every document.
func Each(src Source, fn func(models.Document) error) error {
	cur, err := src.Open()
	if err != nil {
		return err
	}
	defer cur.Close()
	for {
		doc, err := cur.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// FileSource reads a .jsonl or .jsonl.zst file of {"text", "meta"} records.
type FileSource struct {
	name string
	path string
}

func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) Open() (Cursor, error) {
	r, err := archive.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.name, err)
	}
	return &archiveCursor{r: r}, nil
}

type archiveCursor struct {
	r     *archive.Reader
	index int
}

func (c *archiveCursor) Next() (models.Document, error) {
	rec, err := c.r.Next()
	if err != nil {
		return models.Document{}, err
	}
	doc := models.Document{Index: c.index, Text: rec.Text, Meta: rec.Meta}
	c.index++
	return doc, nil
}

func (c *archiveCursor) Close() error { return c.r.Close() }

// StreamSource reads JSON lines from a reader that can only be consumed once,
// such as stdin.
type StreamSource struct {
	name   string
	mu     sync.Mutex
	r      io.Reader
	opened bool
}

func NewStreamSource(name string, r io.Reader) *StreamSource {
	return &StreamSource{name: name, r: r}
}

func (s *StreamSource) Name() string { return s.name }

// Replayable is always false: the underlying reader is consumed once.
func (s *StreamSource) Replayable() bool { return false }

func (s *StreamSource) Open() (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNotReplayable)
	}
	s.opened = true
	return &streamCursor{r: bufio.NewReaderSize(s.r, 1<<20)}, nil
}

type streamCursor struct {
	r     *bufio.Reader
	index int
	line  int
}

func (c *streamCursor) Next() (models.Document, error) {
	for {
		line, err := c.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return models.Document{}, err
		}
		c.line++
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			if err != nil {
				return models.Document{}, err
			}
			continue
		}
		var rec archive.Record
		if uerr := json.Unmarshal([]byte(trimmed), &rec); uerr != nil {
			return models.Document{}, fmt.Errorf("line %d: %w", c.line, uerr)
		}
		if rec.Meta == nil {
			rec.Meta = models.NewMeta()
		}
		doc := models.Document{Index: c.index, Text: rec.Text, Meta: rec.Meta}
		c.index++
		return doc, nil
	}
}

func (c *streamCursor) Close() error { return nil }

// SliceSource serves documents held in memory.
type SliceSource struct {
	name string
	docs []models.Document
}

// NewSliceSource builds a source from texts and optional metadata; metas
// may be shorter than texts.
func NewSliceSource(name string, texts []string, metas []*models.Meta) *SliceSource {
	docs := make([]models.Document, len(texts))
	for i, text := range texts {
		meta := models.NewMeta()
		if i < len(metas) && metas[i] != nil {
			meta = metas[i]
		}
		docs[i] = models.Document{Index: i, Text: text, Meta: meta}
	}
	return &SliceSource{name: name, docs: docs}
}

func (s *SliceSource) Name() string { return s.name }
func (s *SliceSource) Len() int     { return len(s.docs) }

func (s *SliceSource) Open() (Cursor, error) {
	return &sliceCursor{docs: s.docs}, nil
}

type sliceCursor struct {
	docs []models.Document
	pos  int
}

func (c *sliceCursor) Next() (models.Document, error) {
	if c.pos >= len(c.docs) {
		return models.Document{}, io.EOF
	}
	d := c.docs[c.pos]
	c.pos++
	return models.Document{Index: d.Index, Text: d.Text, Meta: d.Meta.Clone()}, nil
}

func (c *sliceCursor) Close() error { return nil }
