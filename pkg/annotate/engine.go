// Package annotate is the boundary to the linguistic annotation engine. It
// turns raw document text into a metrics record, one worker-local engine
// instance at a time.
package annotate

import "context"

// Coarse part-of-speech classes reported by engines.
const (
	PosNoun  = "NOUN"
	PosVerb  = "VERB"
	PosAdj   = "ADJ"
	PosAdv   = "ADV"
	PosPunct = "PUNCT"
	PosSym   = "SYM"
	PosNum   = "NUM"
	PosSpace = "SPACE"
	PosX     = "X"
	PosOther = "OTHER"
)

// Token is a single engine token.
type Token struct {
	Text    string
	POS     string
	Lemma   string
	IsPunct bool
	IsStop  bool
	IsSpace bool
	IsOOV   bool
}

// Sentence is a half-open range of token indexes.
type Sentence struct {
	Start int
	End   int
}

// Len returns the number of tokens in the sentence.
func (s Sentence) Len() int { return s.End - s.Start }

// Annotation is an engine's view of one chunk of text.
type Annotation struct {
	Tokens    []Token
	Sentences []Sentence
}

// Engine annotates text. Instances are not safe for concurrent use; every
// worker owns its own.
type Engine interface {
	// Annotate tokenizes, tags and segments a chunk of at most MaxLength bytes.
	Annotate(ctx context.Context, text string) (*Annotation, error)
	// MaxLength is the largest chunk, in bytes, the engine accepts. <= 0 means unbounded.
	MaxLength() int
	Close() error
}

// EngineFactory loads a fresh engine. It is called once per worker start.
type EngineFactory func() (Engine, error)

// LanguageIdentifier guesses the language of a text.
type LanguageIdentifier interface {
	// Identify returns an ISO 639-1 code (lower case) and a confidence in [0, 1].
	// An empty code means the language could not be determined.
	Identify(text string) (string, float64)
}

// IdentifierFactory builds a worker-local language identifier.
type IdentifierFactory func() (LanguageIdentifier, error)
