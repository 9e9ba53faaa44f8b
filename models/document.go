package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Document is a single (text, metadata) pair read from a dataset.
// Index is the position in the original iteration order and is stable
// across the duplicate pre-pass and the analysis pass.
type Document struct {
	Index int
	Text  string
	Meta  *Meta
}

// Language holds the language-identification result for a document.
type Language struct {
	Lang       string  `json:"lang"`
	Confidence float64 `json:"confidence"`
}

// Meta is document metadata: a fixed core schema (metrics, language, quality)
// plus an open extension map carrying every other field the source provided.
type Meta struct {
	Metrics  *Metrics
	Language *Language
	Quality  Label
	Extra    map[string]any
}

// NewMeta returns an empty Meta ready for use.
func NewMeta() *Meta {
	return &Meta{Extra: map[string]any{}}
}

// Get returns a field from the extension map.
func (m *Meta) Get(key string) (any, bool) {
	if m == nil || m.Extra == nil {
		return nil, false
	}
	v, ok := m.Extra[key]
	return v, ok
}

// Set stores a field in the extension map.
func (m *Meta) Set(key string, value any) {
	if m.Extra == nil {
		m.Extra = map[string]any{}
	}
	m.Extra[key] = value
}

// Delete removes a field from the extension map.
func (m *Meta) Delete(key string) {
	if m.Extra != nil {
		delete(m.Extra, key)
	}
}

// String returns a string field from the extension map, or "".
func (m *Meta) String(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// DisplayName identifies a document in logs and reports: its name, or the
// first 80 characters of its URL.
func (m *Meta) DisplayName() string {
	if name := m.String("name"); name != "" {
		return name
	}
	url := []rune(m.String("url"))
	if len(url) > 80 {
		url = url[:80]
	}
	return string(url)
}

// Numeric returns every numeric top-level field, with computed metrics
// taking precedence over values carried in from the source.
func (m *Meta) Numeric() map[string]float64 {
	out := make(map[string]float64)
	if m == nil {
		return out
	}
	for k, v := range m.Extra {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	if m.Metrics != nil {
		for k, v := range m.Metrics.Values() {
			out[k] = v
		}
	}
	return out
}

// Clone returns a deep-enough copy for handing a document to a worker.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return NewMeta()
	}
	c := &Meta{Quality: m.Quality, Extra: make(map[string]any, len(m.Extra))}
	for k, v := range m.Extra {
		c.Extra[k] = v
	}
	if m.Metrics != nil {
		mm := *m.Metrics
		c.Metrics = &mm
	}
	if m.Language != nil {
		l := *m.Language
		c.Language = &l
	}
	return c
}

// MarshalJSON flattens the core schema back into a single JSON object.
func (m *Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+24)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Metrics != nil {
		for k, v := range m.Metrics.Values() {
			out[k] = v
		}
	}
	if m.Language != nil {
		out["language"] = m.Language
	}
	if m.Quality != "" {
		out["quality"] = m.Quality
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat metadata object. Numbers are kept as
// json.Number so integer fields survive a round trip unchanged.
func (m *Meta) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}
	m.Extra = raw
	m.Metrics = nil
	m.Language = nil
	m.Quality = ""

	if v, ok := raw["language"].(map[string]any); ok {
		lang, _ := v["lang"].(string)
		conf, _ := toFloat(v["confidence"])
		m.Language = &Language{Lang: lang, Confidence: conf}
		delete(m.Extra, "language")
	}
	if v, ok := raw["quality"].(string); ok {
		if label, err := ParseLabel(v); err == nil {
			m.Quality = label
			delete(m.Extra, "quality")
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
