// Package manifest loads, updates and persists per-dataset manifests.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dtnitsch/corpus-postprocessor/pkg/aggregate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/storage"
)

// TimeLayout is the timestamp format of creation_date and updated_date.
const TimeLayout = "2006-01-02 15:04:05"

const (
	keyStats        = "stats"
	keyFileSize     = "file_size"
	keyCreationDate = "creation_date"
	keyUpdatedDate  = "updated_date"
	keyRunID        = "run_id"
)

// Manifest is the persisted record of one dataset. Fields the
// post-processor does not own are kept verbatim in Fields and written back
// unchanged.
type Manifest struct {
	Fields map[string]json.RawMessage
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Fields: map[string]json.RawMessage{}}
}

// Load reads the manifest at path. A missing file yields an empty manifest.
func Load(path string, s *storage.Storage) (*Manifest, error) {
	data, err := s.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	m := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.Fields); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Fields == nil {
		m.Fields = map[string]json.RawMessage{}
	}
	return m, nil
}

// HasQuality reports whether the manifest's stats already carry quality ratios.
func (m *Manifest) HasQuality() bool {
	raw, ok := m.Fields[keyStats]
	if !ok {
		return false
	}
	var stats map[string]json.RawMessage
	if err := json.Unmarshal(raw, &stats); err != nil {
		return false
	}
	q, ok := stats["quality"]
	return ok && !bytes.Equal(bytes.TrimSpace(q), []byte("null"))
}

// String returns a string field, or "".
func (m *Manifest) String(key string) string {
	raw, ok := m.Fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Update describes the outcome of one run.
type Update struct {
	Stats            *aggregate.Stats
	FileSize         int64
	RunID            string
	Now              time.Time
	UpdateTimestamps bool
}

// Apply merges a run's results into the manifest. creation_date is set
// only when absent; updated_date is refreshed only when requested.
func (m *Manifest) Apply(u Update) error {
	stats, err := json.Marshal(u.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	m.Fields[keyStats] = stats
	m.set(keyFileSize, u.FileSize)
	if u.RunID != "" {
		m.set(keyRunID, u.RunID)
	}

	now := u.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := now.Format(TimeLayout)
	if m.String(keyCreationDate) == "" {
		m.set(keyCreationDate, stamp)
	}
	if u.UpdateTimestamps {
		m.set(keyUpdatedDate, stamp)
	}
	return nil
}

func (m *Manifest) set(key string, v any) {
	data, _ := json.Marshal(v)
	m.Fields[key] = data
}

// Marshal renders the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m.Fields, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the manifest atomically; the previous file stays intact
// until the new one is complete.
func (m *Manifest) Save(path string, s *storage.Storage) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := s.SaveFile(path, data); err != nil {
		return fmt.Errorf("error saving manifest: %w", err)
	}
	return nil
}
