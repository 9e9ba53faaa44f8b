package models

// Metric names as they appear in document metadata and manifest stats.
const (
	MetricLength            = "length"
	MetricSentences         = "sentences"
	MetricWords             = "words"
	MetricVerbs             = "verbs"
	MetricNouns             = "nouns"
	MetricAdjectives        = "adjectives"
	MetricAdverbs           = "adverbs"
	MetricPunctuations      = "punctuations"
	MetricSymbols           = "symbols"
	MetricStopwords         = "stopwords"
	MetricOOVs              = "oovs"
	MetricPosX              = "pos_x"
	MetricCamelCase         = "camel_case"
	MetricComplexWords      = "complex_words"
	MetricAvgWordLength     = "avg_word_length"
	MetricAvgSentenceLength = "avg_sentence_length"
	MetricNounRatio         = "noun_ratio"
	MetricVerbRatio         = "verb_ratio"
	MetricAdjRatio          = "adj_ratio"
	MetricLexicalDensity    = "lexical_density"
	MetricGunningFog        = "gunning_fog"
)

// AverageMetrics are per-document averages: dataset stats divide their sums
// by the accepted document count.
var AverageMetrics = map[string]struct{}{
	MetricAvgWordLength:     {},
	MetricAvgSentenceLength: {},
	MetricNounRatio:         {},
	MetricVerbRatio:         {},
	MetricAdjRatio:          {},
	MetricLexicalDensity:    {},
	MetricGunningFog:        {},
}

// ObsoleteKeys were written by earlier versions of the post-processor and
// are dropped from both document metadata and dataset stats.
var ObsoleteKeys = []string{"noun_freq", "verb_freq", "adj_freq", "adjecives"}

// Metrics is the per-document metrics record produced by annotation.
type Metrics struct {
	Length       int
	Sentences    int
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

	AvgWordLength     float64
	AvgSentenceLength float64
	NounRatio         float64
	VerbRatio         float64
	AdjRatio          float64
	LexicalDensity    float64
	GunningFog        float64
}

// Values returns the record keyed by metric name.
func (m *Metrics) Values() map[string]float64 {
	return map[string]float64{
		MetricLength:            float64(m.Length),
		MetricSentences:         float64(m.Sentences),
		MetricWords:             float64(m.Words),
		MetricVerbs:             float64(m.Verbs),
		MetricNouns:             float64(m.Nouns),
		MetricAdjectives:        float64(m.Adjectives),
		MetricAdverbs:           float64(m.Adverbs),
		MetricPunctuations:      float64(m.Punctuations),
		MetricSymbols:           float64(m.Symbols),
		MetricStopwords:         float64(m.Stopwords),
		MetricOOVs:              float64(m.OOVs),
		MetricPosX:              float64(m.PosX),
		MetricCamelCase:         float64(m.CamelCase),
		MetricComplexWords:      float64(m.ComplexWords),
		MetricAvgWordLength:     m.AvgWordLength,
		MetricAvgSentenceLength: m.AvgSentenceLength,
		MetricNounRatio:         m.NounRatio,
		MetricVerbRatio:         m.VerbRatio,
		MetricAdjRatio:          m.AdjRatio,
		MetricLexicalDensity:    m.LexicalDensity,
		MetricGunningFog:        m.GunningFog,
	}
}
