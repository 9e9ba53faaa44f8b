// Package langid identifies document languages with lingua-go.
package langid

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
)

// Options configure a Detector.
type Options struct {
	// Languages restricts detection to these ISO 639-1 codes. Empty means all languages.
	Languages []string
	// LowAccuracy trades accuracy on short texts for speed and memory.
	LowAccuracy bool
}

// Detector implements annotate.LanguageIdentifier.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a lingua detector.
func New(opts Options) (*Detector, error) {
	var builder lingua.LanguageDetectorBuilder
	if len(opts.Languages) == 0 {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		langs, err := parseLanguages(opts.Languages)
		if err != nil {
			return nil, err
		}
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(langs...)
	}
	if opts.LowAccuracy {
		builder = builder.WithLowAccuracyMode()
	}
	return &Detector{detector: builder.Build()}, nil
}

// Factory returns an annotate.IdentifierFactory building detectors from opts.
func Factory(opts Options) annotate.IdentifierFactory {
	return func() (annotate.LanguageIdentifier, error) {
		return New(opts)
	}
}

// Identify returns the most likely language and its confidence.
func (d *Detector) Identify(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return "", 0
	}
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 || values[0].Value() == 0 {
		return "", 0
	}
	best := values[0]
	return Code(best.Language()), best.Value()
}

// Code returns the lower-case ISO 639-1 code of a lingua language.
func Code(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}

func parseLanguages(codes []string) ([]lingua.Language, error) {
	known := make(map[string]lingua.Language)
	for _, l := range lingua.AllLanguages() {
		known[Code(l)] = l
	}
	langs := make([]lingua.Language, 0, len(codes))
	for _, c := range codes {
		l, ok := known[strings.ToLower(strings.TrimSpace(c))]
		if !ok {
			return nil, fmt.Errorf("unsupported language code %q", c)
		}
		langs = append(langs, l)
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("language detection needs at least two candidate languages, got %d", len(langs))
	}
	return langs, nil
}
