package annotate

import (
	"math"
	"strings"
	"unicode"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

// Counts are the token-level totals of one or more chunks. Every field is
// additive, so per-chunk counts merge by summation; ratios are derived once
// from the merged totals.
type Counts struct {
	Words        int
	Verbs        int
	Nouns        int
	Adjectives   int
	Adverbs      int
	Punctuations int
	Symbols      int
	Stopwords    int
	OOVs         int
	PosX         int
	CamelCase    int
	ComplexWords int

	// WordChars is the summed length of content (non-stop) words.
	WordChars int

	Sentences      int
	SentenceTokens int

	// Lemmas holds the distinct content lemmas (nouns, verbs, adjectives, adverbs).
	Lemmas map[string]struct{}
}

// Tally counts a single annotated chunk.
func Tally(a *Annotation) Counts {
	c := Counts{Lemmas: map[string]struct{}{}}
	if a == nil {
		return c
	}
	for _, tok := range a.Tokens {
		sym := tok.POS == PosSym
		if !tok.IsPunct && !tok.IsStop && !tok.IsSpace {
			if tok.IsOOV && !sym {
				c.OOVs++
			}
			switch tok.POS {
			case PosNoun:
				c.Nouns++
				c.Lemmas[tok.Lemma] = struct{}{}
			case PosVerb:
				c.Verbs++
				c.Lemmas[tok.Lemma] = struct{}{}
			case PosAdj:
				c.Adjectives++
				c.Lemmas[tok.Lemma] = struct{}{}
			case PosAdv:
				c.Adverbs++
				c.Lemmas[tok.Lemma] = struct{}{}
			case PosX:
				c.PosX++
			}
			c.WordChars += len([]rune(tok.Text))
			if !sym && isCamelCase(tok.Text) {
				c.CamelCase++
			}
			if !sym && syllables(tok.Text) >= 3 {
				c.ComplexWords++
			}
		}
		if sym {
			c.Symbols++
		}
		if tok.IsStop {
			c.Stopwords++
		}
		if tok.IsPunct {
			c.Punctuations++
		} else if !tok.IsSpace && !sym {
			c.Words++
		}
	}
	for _, s := range a.Sentences {
		c.Sentences++
		c.SentenceTokens += s.Len()
	}
	return c
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Words += other.Words
	c.Verbs += other.Verbs
	c.Nouns += other.Nouns
	c.Adjectives += other.Adjectives
	c.Adverbs += other.Adverbs
	c.Punctuations += other.Punctuations
	c.Symbols += other.Symbols
	c.Stopwords += other.Stopwords
	c.OOVs += other.OOVs
	c.PosX += other.PosX
	c.CamelCase += other.CamelCase
	c.ComplexWords += other.ComplexWords
	c.WordChars += other.WordChars
	c.Sentences += other.Sentences
	c.SentenceTokens += other.SentenceTokens
	if c.Lemmas == nil {
		c.Lemmas = map[string]struct{}{}
	}
	for l := range other.Lemmas {
		c.Lemmas[l] = struct{}{}
	}
}

// Metrics derives the per-document record. length is the text length in characters.
func (c Counts) Metrics(length int) *models.Metrics {
	m := &models.Metrics{
		Length:       length,
		Sentences:    c.Sentences,
		Words:        c.Words,
		Verbs:        c.Verbs,
		Nouns:        c.Nouns,
		Adjectives:   c.Adjectives,
		Adverbs:      c.Adverbs,
		Punctuations: c.Punctuations,
		Symbols:      c.Symbols,
		Stopwords:    c.Stopwords,
		OOVs:         c.OOVs,
		PosX:         c.PosX,
		CamelCase:    c.CamelCase,
		ComplexWords: c.ComplexWords,
	}
	if c.Sentences > 0 {
		m.AvgSentenceLength = float64(c.SentenceTokens) / float64(c.Sentences)
	}
	if c.Words > 0 {
		words := float64(c.Words)
		m.AvgWordLength = float64(c.WordChars) / words
		m.NounRatio = float64(c.Nouns) / words
		m.VerbRatio = float64(c.Verbs) / words
		m.AdjRatio = float64(c.Adjectives) / words
	}
	if c.Words > 0 {
		m.LexicalDensity = float64(len(c.Lemmas)) / float64(c.Words)
	}
	if c.Words > 0 && c.Sentences > 0 {
		fog := 0.4 * (float64(c.Words)/float64(c.Sentences) + 100*float64(c.ComplexWords)/float64(c.Words))
		m.GunningFog = math.Round(fog*100) / 100
	}
	return m
}

// isCamelCase reports a lower-case letter immediately followed by an
// upper-case one, the usual trace of words glued together during scraping.
func isCamelCase(s string) bool {
	prevLower := false
	for _, r := range s {
		if prevLower && unicode.IsUpper(r) {
			return true
		}
		prevLower = unicode.IsLower(r)
	}
	return false
}

const vowels = "aeiouyąęóAEIOUYĄĘÓ"

// syllables approximates the syllable count as the number of vowel groups.
func syllables(word string) int {
	n := 0
	inVowel := false
	for _, r := range word {
		v := strings.ContainsRune(vowels, r)
		if v && !inVowel {
			n++
		}
		inVowel = v
	}
	return n
}
