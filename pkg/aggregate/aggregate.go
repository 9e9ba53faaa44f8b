// Package aggregate accumulates dataset statistics over accepted documents.
package aggregate

import (
	"encoding/json"
	"math"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

// Aggregator keeps running sums. It is not safe for concurrent use; the
// pipeline feeds it from its single consuming goroutine.
type Aggregator struct {
	documents    int
	sums         map[string]float64
	quality      map[models.Label]int
	trackQuality bool
}

// New returns an empty Aggregator. With trackQuality, every accepted
// document is counted under its quality label, LOW when it has none.
func New(trackQuality bool) *Aggregator {
	return &Aggregator{
		sums:         map[string]float64{},
		quality:      map[models.Label]int{},
		trackQuality: trackQuality,
	}
}

// Add folds one accepted document into the running state.
func (a *Aggregator) Add(meta *models.Meta) {
	a.documents++
	for k, v := range meta.Numeric() {
		a.sums[k] += v
	}
	if a.trackQuality {
		label := models.LabelLow
		if meta != nil && meta.Quality != "" {
			label = meta.Quality
		}
		a.quality[label]++
	}
}

// Documents returns the number of accepted documents so far.
func (a *Aggregator) Documents() int { return a.documents }

// QualityCounts returns the raw per-label counts.
func (a *Aggregator) QualityCounts() map[models.Label]int {
	out := make(map[models.Label]int, len(a.quality))
	for k, v := range a.quality {
		out[k] = v
	}
	return out
}

// Stats is the normalized dataset statistics block of a manifest.
type Stats struct {
	Documents int
	Values    map[string]float64
	Quality   map[models.Label]float64
}

// Finalize normalizes the running sums: average metrics are divided by the
// document count and rounded to 4 places, obsolete keys are dropped and
// quality counts become ratios rounded to 2 places. With no documents,
// normalization is skipped and only the zero count is reported.
func (a *Aggregator) Finalize() *Stats {
	st := &Stats{Documents: a.documents, Values: map[string]float64{}}
	if a.documents == 0 {
		return st
	}
	n := float64(a.documents)
	for k, v := range a.sums {
		if _, avg := models.AverageMetrics[k]; avg {
			v = round(v/n, 4)
		}
		st.Values[k] = v
	}
	for _, k := range models.ObsoleteKeys {
		delete(st.Values, k)
	}
	delete(st.Values, "documents")
	delete(st.Values, "quality")

	if a.trackQuality {
		st.Quality = make(map[models.Label]float64, len(models.Labels))
		for _, l := range models.Labels {
			st.Quality[l] = round(float64(a.quality[l])/n, 2)
		}
	}
	return st
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// MarshalJSON renders stats as one flat object: documents, every value
// key and, when present, the quality ratios.
func (s *Stats) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Values)+2)
	for k, v := range s.Values {
		out[k] = v
	}
	out["documents"] = s.Documents
	if s.Quality != nil {
		out["quality"] = s.Quality
	}
	return json.Marshal(out)
}
