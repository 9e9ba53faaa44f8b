// Package quality assigns documents a LOW / MEDIUM / HIGH tier from their
// linguistic metrics. Classification is a pure function of its input.
package quality

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

// ErrInsufficient means a document cannot be classified from the data it carries.
var ErrInsufficient = errors.New("insufficient data for quality classification")

// Required lists the metadata keys classification reads.
var Required = []string{
	models.MetricCamelCase,
	models.MetricPunctuations,
	models.MetricSymbols,
	models.MetricOOVs,
	models.MetricPosX,
	models.MetricLexicalDensity,
	models.MetricGunningFog,
	models.MetricAvgSentenceLength,
	models.MetricWords,
}

// Sample is a complete set of classifier inputs, ratios already derived.
type Sample struct {
	CamelCase         float64
	PunctuationsRatio float64
	SymbolsRatio      float64
	OOVsRatio         float64
	PosXRatio         float64
	AvgSentenceLength float64
	GunningFog        float64
	LexicalDensity    float64
}

// SanityCheck turns a partial metrics view into a complete Sample. It fails
// with ErrInsufficient when a required key is missing, words is zero, or a
// derived ratio is not a finite number.
func SanityCheck(values map[string]float64) (Sample, error) {
	var missing []string
	for _, key := range Required {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Sample{}, fmt.Errorf("%w: missing %v", ErrInsufficient, missing)
	}

	words := values[models.MetricWords]
	if words <= 0 {
		return Sample{}, fmt.Errorf("%w: words = %v", ErrInsufficient, words)
	}

	s := Sample{
		CamelCase:         values[models.MetricCamelCase],
		PunctuationsRatio: values[models.MetricPunctuations] / words,
		SymbolsRatio:      values[models.MetricSymbols] / words,
		OOVsRatio:         values[models.MetricOOVs] / words,
		PosXRatio:         values[models.MetricPosX] / words,
		AvgSentenceLength: values[models.MetricAvgSentenceLength],
		GunningFog:        values[models.MetricGunningFog],
		LexicalDensity:    values[models.MetricLexicalDensity],
	}
	for _, f := range []float64{s.CamelCase, s.PunctuationsRatio, s.SymbolsRatio, s.OOVsRatio, s.PosXRatio, s.AvgSentenceLength, s.GunningFog, s.LexicalDensity} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Sample{}, fmt.Errorf("%w: non-finite input", ErrInsufficient)
		}
	}
	return s, nil
}

// Classify applies the tier cascade. The LOW bands are checked first, so a
// document that is LOW on any band is LOW even when it also meets every
// HIGH condition.
func Classify(s Sample) models.Label {
	// text shape
	if s.SymbolsRatio > 0.01 || s.PunctuationsRatio > 0.4 || s.PunctuationsRatio < 0.1 || s.CamelCase > 10 {
		return models.LabelLow
	}
	// vocabulary
	if s.PosXRatio > 0.07 || s.OOVsRatio > 0.15 {
		return models.LabelLow
	}
	// readability
	if s.AvgSentenceLength > 35 || s.AvgSentenceLength < 5 || s.GunningFog > 14 || s.LexicalDensity > 0.8 || s.LexicalDensity < 0.2 {
		return models.LabelLow
	}

	shape := s.SymbolsRatio == 0 && s.PunctuationsRatio > 0.1 && s.PunctuationsRatio <= 0.35 && s.CamelCase < 3
	vocabulary := s.PosXRatio < 0.01 && s.OOVsRatio < 0.05
	readability := s.AvgSentenceLength > 10 && s.AvgSentenceLength < 26 && s.GunningFog < 10 &&
		s.LexicalDensity > 0.4 && s.LexicalDensity < 0.6
	if shape && vocabulary && readability {
		return models.LabelHigh
	}
	return models.LabelMedium
}

// Assess runs SanityCheck and Classify. Callers treat a non-nil error as LOW.
func Assess(values map[string]float64) (models.Label, error) {
	s, err := SanityCheck(values)
	if err != nil {
		return models.LabelLow, err
	}
	return Classify(s), nil
}
