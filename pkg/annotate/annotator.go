package annotate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/textsplit"
)

// Options select which metric families an Annotator computes.
type Options struct {
	Stats         bool
	Lang          bool
	MaxChunkBytes int
}

// Annotator is a worker-local context: it owns one engine and one language
// identifier for its whole lifetime and must not be shared across goroutines.
type Annotator struct {
	engine Engine
	langID LanguageIdentifier
	opts   Options
}

// New loads the engine and identifier. Factories for disabled families may be nil.
func New(engines EngineFactory, identifiers IdentifierFactory, opts Options) (*Annotator, error) {
	a := &Annotator{opts: opts}
	if opts.Stats {
		if engines == nil {
			return nil, fmt.Errorf("stats requested without an annotation engine")
		}
		engine, err := engines()
		if err != nil {
			return nil, fmt.Errorf("failed to load annotation engine: %w", err)
		}
		a.engine = engine
	}
	if opts.Lang {
		if identifiers == nil {
			_ = a.Close()
			return nil, fmt.Errorf("lang requested without a language identifier")
		}
		id, err := identifiers()
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to load language identifier: %w", err)
		}
		a.langID = id
	}
	return a, nil
}

// Close releases the engine.
func (a *Annotator) Close() error {
	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	return err
}

// Annotate returns a copy of meta with computed metrics and language merged
// in. Unrelated fields are kept; obsolete keys are dropped.
func (a *Annotator) Annotate(ctx context.Context, text string, meta *models.Meta) (*models.Meta, error) {
	out := meta.Clone()
	for _, key := range models.ObsoleteKeys {
		out.Delete(key)
	}

	if a.opts.Stats {
		counts, err := a.count(ctx, text)
		if err != nil {
			return nil, err
		}
		out.Metrics = counts.Metrics(utf8.RuneCountInString(text))
	}

	if a.opts.Lang {
		lang, conf := a.langID.Identify(flatten(text))
		out.Language = &models.Language{
			Lang:       lang,
			Confidence: math.Round(conf*1000) / 1000,
		}
	}
	return out, nil
}

// count feeds the text to the engine chunk by chunk and merges the totals.
func (a *Annotator) count(ctx context.Context, text string) (Counts, error) {
	limit := a.opts.MaxChunkBytes
	if max := a.engine.MaxLength(); max > 0 && (limit <= 0 || max < limit) {
		limit = max
	}

	total := Counts{Lemmas: map[string]struct{}{}}
	for i, chunk := range textsplit.Split(text, limit) {
		if err := ctx.Err(); err != nil {
			return Counts{}, err
		}
		ann, err := a.engine.Annotate(ctx, chunk)
		if err != nil {
			return Counts{}, fmt.Errorf("annotate chunk %d: %w", i, err)
		}
		total.Merge(Tally(ann))
	}
	return total, nil
}

// flatten joins lines so the identifier sees a single paragraph.
func flatten(text string) string {
	return strings.Join(strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	}), " ")
}
