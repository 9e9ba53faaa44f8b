// Package archive reads and writes compacted corpus archives: zstd-compressed
// JSON lines of {"text": ..., "meta": {...}}, the lm_dataformat layout.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

// Record is one archived document.
type Record struct {
	Text string       `json:"text"`
	Meta *models.Meta `json:"meta"`
}

// Writer buffers records into a zstd stream. It is not safe for concurrent use.
type Writer struct {
	path      string
	file      *os.File
	enc       *zstd.Encoder
	buf       *bufio.Writer
	count     int
	committed bool
}

// NewWriter creates the archive file at path, creating parent directories.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{
		path: path,
		file: f,
		enc:  enc,
		buf:  bufio.NewWriterSize(enc, 1<<20),
	}, nil
}

// Path returns the archive file path.
func (w *Writer) Path() string { return w.path }

// Count returns the number of appended records.
func (w *Writer) Count() int { return w.count }

// Append adds one document.
func (w *Writer) Append(text string, meta *models.Meta) error {
	if w.committed {
		return errors.New("archive already committed")
	}
	if meta == nil {
		meta = models.NewMeta()
	}
	line, err := json.Marshal(Record{Text: text, Meta: meta})
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.count++
	return nil
}

// Commit flushes and closes the archive and returns its size in bytes.
func (w *Writer) Commit() (int64, error) {
	if w.committed {
		return 0, errors.New("archive already committed")
	}
	w.committed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.enc.Close()
		_ = w.file.Close()
		return 0, fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return 0, fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return 0, fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	return info.Size(), nil
}

// Abort discards an uncommitted archive.
func (w *Writer) Abort() error {
	if !w.committed {
		w.committed = true
		_ = w.enc.Close()
		_ = w.file.Close()
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove archive: %w", err)
	}
	return nil
}

// Reader streams records from a .jsonl or .jsonl.zst file.
type Reader struct {
	file *os.File
	dec  *zstd.Decoder
	r    *bufio.Reader
	line int
}

// Open opens an archive for reading; compression is chosen by extension.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	rd := &Reader{file: f}
	var src io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		rd.dec = dec
		src = dec
	}
	rd.r = bufio.NewReaderSize(src, 1<<20)
	return rd, nil
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (Record, error) {
	for {
		line, err := r.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("failed to read archive: %w", err)
		}
		r.line++
		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			continue
		}
		var rec Record
		if uerr := json.Unmarshal([]byte(trimmed), &rec); uerr != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, uerr)
		}
		if rec.Meta == nil {
			rec.Meta = models.NewMeta()
		}
		return rec, nil
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.file.Close()
}
