// Package engine is a lightweight rule-based annotation engine: a Unicode
// tokenizer, punctuation-driven sentence splitter, snowball stemmer for
// lemmas and suffix heuristics for coarse part-of-speech tags.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
)

// DefaultMaxLength is the largest chunk accepted when Config.MaxLength is unset.
const DefaultMaxLength = 1000000

// stemmers maps ISO 639-1 codes to snowball stemmer names.
var stemmers = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"hu": "hungarian",
}

// Config describes one engine instance.
type Config struct {
	// Language is the ISO 639-1 code of the corpus language.
	Language string
	// Stopwords overrides the built-in list for Language.
	Stopwords map[string]struct{}
	// Vocabulary, when set, marks every word outside it as out-of-vocabulary.
	Vocabulary map[string]struct{}
	MaxLength  int
}

// Engine implements annotate.Engine.
type Engine struct {
	lang      string
	stemmer   string
	stopwords map[string]struct{}
	vocab     map[string]struct{}
	maxLength int
}

// New builds an engine from cfg.
func New(cfg Config) *Engine {
	lang := strings.ToLower(cfg.Language)
	stop := cfg.Stopwords
	if stop == nil {
		stop = Stopwords(lang)
	}
	max := cfg.MaxLength
	if max <= 0 {
		max = DefaultMaxLength
	}
	return &Engine{
		lang:      lang,
		stemmer:   stemmers[lang],
		stopwords: stop,
		vocab:     cfg.Vocabulary,
		maxLength: max,
	}
}

// Factory returns an annotate.EngineFactory building engines from cfg.
func Factory(cfg Config) annotate.EngineFactory {
	return func() (annotate.Engine, error) {
		return New(cfg), nil
	}
}

// LoadWordList reads one word per line, skipping blanks and # comments.
func LoadWordList(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer f.Close()

	set := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list %s: %w", path, err)
	}
	return set, nil
}

func (e *Engine) MaxLength() int { return e.maxLength }

func (e *Engine) Close() error { return nil }

// Annotate tokenizes and tags text.
func (e *Engine) Annotate(ctx context.Context, text string) (*annotate.Annotation, error) {
	if len(text) > e.maxLength {
		return nil, fmt.Errorf("chunk of %d bytes exceeds engine limit %d", len(text), e.maxLength)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ann := &annotate.Annotation{}
	start := 0
	for _, raw := range tokenize(text) {
		tok := e.tag(raw)
		ann.Tokens = append(ann.Tokens, tok)
		if tok.IsPunct && isSentenceEnd(tok.Text) {
			ann.Sentences = append(ann.Sentences, annotate.Sentence{Start: start, End: len(ann.Tokens)})
			start = len(ann.Tokens)
		}
	}
	if hasContent(ann.Tokens[start:]) {
		ann.Sentences = append(ann.Sentences, annotate.Sentence{Start: start, End: len(ann.Tokens)})
	}
	return ann, nil
}

func (e *Engine) tag(text string) annotate.Token {
	tok := annotate.Token{Text: text, Lemma: text}
	first := []rune(text)[0]

	switch {
	case unicode.IsSpace(first):
		tok.IsSpace = true
		tok.POS = annotate.PosSpace
		return tok
	case unicode.IsPunct(first):
		tok.IsPunct = true
		tok.POS = annotate.PosPunct
		return tok
	case unicode.IsSymbol(first):
		tok.POS = annotate.PosSym
		return tok
	}

	lower := strings.ToLower(text)
	tok.Lemma = e.lemma(lower)
	_, tok.IsStop = e.stopwords[lower]
	tok.POS = e.pos(lower)
	tok.IsOOV = e.oov(lower, tok.Lemma, tok.POS)
	return tok
}

func (e *Engine) lemma(lower string) string {
	if e.stemmer == "" {
		return lower
	}
	stemmed, err := snowball.Stem(lower, e.stemmer, true)
	if err != nil || stemmed == "" {
		return lower
	}
	return stemmed
}

func (e *Engine) oov(lower, lemma, pos string) bool {
	if pos == annotate.PosNum {
		return false
	}
	if e.vocab != nil {
		_, word := e.vocab[lower]
		_, stem := e.vocab[lemma]
		return !word && !stem
	}
	return pos == annotate.PosX
}

// pos assigns a coarse tag from word shape and language-specific suffixes.
func (e *Engine) pos(lower string) string {
	letters, digits, other := 0, 0, 0
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsMark(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case r == '-' || r == '\'' || r == '’':
		default:
			other++
		}
	}
	switch {
	case letters == 0 && digits > 0:
		return annotate.PosNum
	case letters == 0, digits > 0, other > 0:
		return annotate.PosX
	}
	if _, ok := e.stopwords[lower]; ok {
		return annotate.PosOther
	}
	for _, rule := range suffixRules[e.lang] {
		if len([]rune(lower)) > len([]rune(rule.suffix))+1 && strings.HasSuffix(lower, rule.suffix) {
			return rule.pos
		}
	}
	return annotate.PosNoun
}

type suffixRule struct {
	suffix string
	pos    string
}

// suffixRules are checked in order; the first match wins.
var suffixRules = map[string][]suffixRule{
	"en": {
		{"ly", annotate.PosAdv},
		{"ing", annotate.PosVerb},
		{"ed", annotate.PosVerb},
		{"ize", annotate.PosVerb},
		{"ise", annotate.PosVerb},
		{"ate", annotate.PosVerb},
		{"ous", annotate.PosAdj},
		{"ful", annotate.PosAdj},
		{"ive", annotate.PosAdj},
		{"able", annotate.PosAdj},
		{"ible", annotate.PosAdj},
		{"less", annotate.PosAdj},
		{"ical", annotate.PosAdj},
		{"ic", annotate.PosAdj},
	},
	"pl": {
		{"owski", annotate.PosAdj},
		{"owy", annotate.PosAdj},
		{"owa", annotate.PosAdj},
		{"owe", annotate.PosAdj},
		{"ski", annotate.PosAdj},
		{"ska", annotate.PosAdj},
		{"skie", annotate.PosAdj},
		{"nego", annotate.PosAdj},
		{"nych", annotate.PosAdj},
		{"ny", annotate.PosAdj},
		{"ić", annotate.PosVerb},
		{"ać", annotate.PosVerb},
		{"eć", annotate.PosVerb},
		{"yć", annotate.PosVerb},
		{"ują", annotate.PosVerb},
		{"uje", annotate.PosVerb},
		{"ał", annotate.PosVerb},
		{"ała", annotate.PosVerb},
		{"ało", annotate.PosVerb},
		{"ali", annotate.PosVerb},
		{"iał", annotate.PosVerb},
		{"nie", annotate.PosAdv},
		{"ko", annotate.PosAdv},
		{"rze", annotate.PosAdv},
	},
}

func isSentenceEnd(s string) bool {
	switch s {
	case ".", "!", "?", "…":
		return true
	}
	return false
}

func hasContent(tokens []annotate.Token) bool {
	for _, t := range tokens {
		if !t.IsSpace {
			return true
		}
	}
	return false
}

// tokenize splits text into word, punctuation, symbol and paragraph-break
// tokens. Plain single spaces are dropped; runs of whitespace containing a
// blank line become one space token.
func tokenize(text string) []string {
	var tokens []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			j, newlines := i, 0
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				if runes[j] == '\n' {
					newlines++
				}
				j++
			}
			if newlines > 1 {
				tokens = append(tokens, string(runes[i:j]))
			}
			i = j
		case isWordRune(r):
			j := i + 1
			for j < len(runes) && (isWordRune(runes[j]) || isJoiner(runes, j)) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			tokens = append(tokens, string(r))
			i++
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// isJoiner keeps hyphens, apostrophes and decimal points inside a word when
// they sit between two word runes.
func isJoiner(runes []rune, i int) bool {
	switch runes[i] {
	case '-', '\'', '’', '.', ',':
	default:
		return false
	}
	if i+1 >= len(runes) || !isWordRune(runes[i+1]) {
		return false
	}
	if runes[i] == '.' || runes[i] == ',' {
		return unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
	}
	return true
}
