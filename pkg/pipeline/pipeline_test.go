package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/annotate"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dataset"
	"github.com/dtnitsch/corpus-postprocessor/pkg/dedup"
)

// fakeEngine tags whitespace tokens: "," and "." are punctuation and every
// other token is a noun lemmatized to itself. "." closes a sentence. Text
// containing PANIC panics and text starting with ERROR fails.
type fakeEngine struct{}

func (fakeEngine) Annotate(_ context.Context, text string) (*annotate.Annotation, error) {
	if strings.Contains(text, "PANIC") {
		panic("engine state corrupted")
	}
	if strings.HasPrefix(text, "ERROR") {
		return nil, errors.New("engine rejected text")
	}
	ann := &annotate.Annotation{}
	start := 0
	for _, f := range strings.Fields(text) {
		tok := annotate.Token{Text: f, Lemma: f, POS: annotate.PosNoun}
		if f == "," || f == "." {
			tok.IsPunct, tok.POS = true, annotate.PosPunct
		}
		ann.Tokens = append(ann.Tokens, tok)
		if f == "." {
			ann.Sentences = append(ann.Sentences, annotate.Sentence{Start: start, End: len(ann.Tokens)})
			start = len(ann.Tokens)
		}
	}
	if start < len(ann.Tokens) {
		ann.Sentences = append(ann.Sentences, annotate.Sentence{Start: start, End: len(ann.Tokens)})
	}
	return ann, nil
}

func (fakeEngine) MaxLength() int { return 0 }
func (fakeEngine) Close() error   { return nil }

type fakeIdentifier struct{}

func (fakeIdentifier) Identify(text string) (string, float64) {
	if strings.HasPrefix(text, "EN:") {
		return "en", 0.9
	}
	return "pl", 0.99
}

func engines(loads *atomic.Int32) annotate.EngineFactory {
	return func() (annotate.Engine, error) {
		if loads != nil {
			loads.Add(1)
		}
		return fakeEngine{}, nil
	}
}

func identifiers() (annotate.LanguageIdentifier, error) { return fakeIdentifier{}, nil }

type memSink struct {
	texts   []string
	metas   []*models.Meta
	commits int
	failAt  int
}

func (s *memSink) Append(text string, meta *models.Meta) error {
	if s.failAt > 0 && len(s.texts)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.texts = append(s.texts, text)
	s.metas = append(s.metas, meta)
	return nil
}

func (s *memSink) Commit() (int64, error) {
	s.commits++
	return int64(len(s.texts) * 10), nil
}

const (
	// one sentence, 12 words over 6 lemmas, two punctuation marks
	highText = "kot dom pole kot dom pole lis ryba lis ryba okno okno , ."
	// one lemma repeated: lexical density far below the LOW band
	lowText = "kot kot kot kot kot kot kot kot kot kot kot ."
)

func corpus() *dataset.SliceSource {
	return dataset.NewSliceSource("test", []string{
		highText,
		highText,
		"krótki",
		". , . , . , . , .",
		"EN: the cat sat on the mat .",
		"ERROR this text breaks the engine .",
		lowText,
	}, nil)
}

func fullConfig(workers int) Config {
	return Config{
		Workers:           workers,
		MaxTasksPerWorker: 3,
		MinLength:         10,
		Language:          "pl",
		Stats:             true,
		Lang:              true,
		Quality:           true,
		SampleSize:        1,
	}
}

func detect(t *testing.T, src dataset.Source) *dedup.Result {
	t.Helper()
	res, err := (&dedup.Detector{}).Detect(context.Background(), src)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	return res
}

func TestRunFilterCascade(t *testing.T) {
	src := corpus()
	sink := &memSink{}
	c := New(fullConfig(2), engines(nil), identifiers, nil)

	out, err := c.Run(context.Background(), src, detect(t, src), sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantSkips := map[string]int{
		ReasonDuplicate:       1,
		ReasonTooShort:        2,
		ReasonWrongLanguage:   1,
		ReasonAnnotationError: 1,
	}
	if !reflect.DeepEqual(out.Skips, wantSkips) {
		t.Errorf("Skips = %v, want %v", out.Skips, wantSkips)
	}
	if out.Seen != 7 || out.Accepted != 2 {
		t.Errorf("Seen, Accepted = %d, %d, want 7, 2", out.Seen, out.Accepted)
	}
	if out.Stats.Documents != 2 || len(sink.texts) != 2 {
		t.Errorf("stats documents = %d, archived = %d, want 2, 2", out.Stats.Documents, len(sink.texts))
	}
	if sink.commits != 1 || out.FileSize != 20 {
		t.Errorf("commits = %d, FileSize = %d", sink.commits, out.FileSize)
	}
	if out.Stats.Quality[models.LabelHigh] != 0.5 || out.Stats.Quality[models.LabelLow] != 0.5 {
		t.Errorf("Quality = %v, want HIGH 0.5 LOW 0.5", out.Stats.Quality)
	}
	if len(out.Samples) != 1 {
		t.Errorf("Samples = %d, want 1", len(out.Samples))
	}
	for _, m := range sink.metas {
		if m.Language == nil || m.Language.Lang != "pl" || m.Metrics == nil {
			t.Errorf("archived meta missing annotation: %+v", m)
		}
	}
}

func TestRunZeroWordDocumentNeverCounted(t *testing.T) {
	src := dataset.NewSliceSource("d", []string{". , . , . , . , . , ."}, nil)
	sink := &memSink{}
	cfg := fullConfig(1)
	cfg.Lang = false

	out, err := New(cfg, engines(nil), nil, nil).Run(context.Background(), src, nil, sink)
	if err != nil {
		t.Fatal(err)
	}
	if out.Stats.Documents != 0 || out.Skips[ReasonTooShort] != 1 || out.Degraded != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if out.Stats.Quality != nil {
		t.Errorf("Quality = %v, want none for an empty dataset", out.Stats.Quality)
	}
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	src := corpus()
	dups := detect(t, src)

	var stats []map[string]float64
	for _, workers := range []int{1, 4} {
		out, err := New(fullConfig(workers), engines(nil), identifiers, nil).Run(context.Background(), src, dups, &memSink{})
		if err != nil {
			t.Fatal(err)
		}
		stats = append(stats, out.Stats.Values)
	}
	if !reflect.DeepEqual(stats[0], stats[1]) {
		t.Errorf("stats differ between 1 and 4 workers:\n%v\n%v", stats[0], stats[1])
	}
}

func TestRunRecyclesAnnotator(t *testing.T) {
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = highText
	}
	var loads atomic.Int32
	cfg := fullConfig(1)
	cfg.Lang, cfg.MaxTasksPerWorker = false, 3

	_, err := New(cfg, engines(&loads), nil, nil).Run(context.Background(), dataset.NewSliceSource("d", texts, nil), nil, &memSink{})
	if err != nil {
		t.Fatal(err)
	}
	if got := loads.Load(); got != 3 {
		t.Errorf("engine loads = %d, want 3 for 7 documents at 3 per worker", got)
	}
}

func TestRunWorkerPanicIsFatal(t *testing.T) {
	texts := []string{highText, "PANIC in the engine now .", highText, highText}
	sink := &memSink{}
	cfg := fullConfig(2)
	cfg.Lang = false

	_, err := New(cfg, engines(nil), nil, nil).Run(context.Background(), dataset.NewSliceSource("d", texts, nil), nil, sink)
	if !errors.Is(err, ErrWorkerFatal) {
		t.Fatalf("Run() error = %v, want ErrWorkerFatal", err)
	}
	if sink.commits != 0 {
		t.Error("archive committed after a fatal worker error")
	}
}

func TestRunEngineLoadFailureIsFatal(t *testing.T) {
	broken := func() (annotate.Engine, error) { return nil, errors.New("model missing") }
	cfg := fullConfig(2)
	cfg.Lang = false

	_, err := New(cfg, broken, nil, nil).Run(context.Background(), corpus(), nil, &memSink{})
	if !errors.Is(err, ErrWorkerFatal) {
		t.Errorf("Run() error = %v, want ErrWorkerFatal", err)
	}
}

func TestRunFactoryPanicIsFatal(t *testing.T) {
	tests := []struct {
		name        string
		engines     annotate.EngineFactory
		identifiers annotate.IdentifierFactory
	}{
		{
			name:    "engine",
			engines: func() (annotate.Engine, error) { panic("corrupt model file") },
		},
		{
			name:        "identifier",
			engines:     engines(nil),
			identifiers: func() (annotate.LanguageIdentifier, error) { panic("no language models") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memSink{}
			_, err := New(fullConfig(2), tt.engines, tt.identifiers, nil).Run(context.Background(), corpus(), nil, sink)
			if !errors.Is(err, ErrWorkerFatal) {
				t.Fatalf("Run() error = %v, want ErrWorkerFatal", err)
			}
			if sink.commits != 0 {
				t.Error("archive committed after a factory panic")
			}
		})
	}
}

func TestRunArchiveFailureAborts(t *testing.T) {
	sink := &memSink{failAt: 1}
	cfg := fullConfig(1)
	cfg.Lang = false

	_, err := New(cfg, engines(nil), nil, nil).Run(context.Background(), corpus(), nil, sink)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Run() error = %v, want archive failure", err)
	}
	if sink.commits != 0 {
		t.Error("archive committed after append failure")
	}
}

func TestRunNonReplayableSource(t *testing.T) {
	src := dataset.NewStreamSource("stdin", strings.NewReader(`{"text":"a"}`+"\n"))
	dups := detect(t, src)

	_, err := New(fullConfig(1), engines(nil), identifiers, nil).Run(context.Background(), src, dups, &memSink{})
	if !errors.Is(err, dataset.ErrNotReplayable) {
		t.Errorf("Run() error = %v, want ErrNotReplayable", err)
	}
}

func TestRunWithoutStatsUsesCarriedLabels(t *testing.T) {
	metas := []*models.Meta{
		{Quality: models.LabelHigh, Extra: map[string]any{}},
		{Quality: models.LabelMedium, Extra: map[string]any{}},
	}
	src := dataset.NewSliceSource("d", []string{highText, lowText}, metas)
	cfg := Config{Workers: 2, MinLength: 10, TrackQuality: true}

	out, err := New(cfg, nil, nil, nil).Run(context.Background(), src, nil, &memSink{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stats.Quality[models.LabelHigh] != 0.5 || out.Stats.Quality[models.LabelMedium] != 0.5 {
		t.Errorf("Quality = %v", out.Stats.Quality)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}

	_, err := New(fullConfig(2), engines(nil), identifiers, nil).Run(ctx, corpus(), nil, sink)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if sink.commits != 0 {
		t.Error("archive committed after cancellation")
	}
}
