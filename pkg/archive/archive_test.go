package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/corpus-postprocessor/models"
)

func TestWriteCommitRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "corpus.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	meta := models.NewMeta()
	meta.Set("name", "first")
	meta.Quality = models.LabelHigh
	if err := w.Append("pierwszy dokument", meta); err != nil {
		t.Fatal(err)
	}
	if err := w.Append("drugi\ndokument", nil); err != nil {
		t.Fatal(err)
	}

	size, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if size <= 0 {
		t.Errorf("Commit() size = %d, want > 0", size)
	}
	if err := w.Append("late", nil); err == nil {
		t.Error("Append() after Commit() should fail")
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.Text != "pierwszy dokument" || first.Meta.String("name") != "first" || first.Meta.Quality != models.LabelHigh {
		t.Errorf("first record = %+v", first)
	}
	second, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if second.Text != "drugi\ndokument" {
		t.Errorf("second text = %q", second.Text)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestAbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Append("text", nil)
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("archive still exists after Abort(): %v", err)
	}
}

func TestReadPlainJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jsonl")
	body := `{"text":"a","meta":{"url":"https://a"}}` + "\n\n" + `{"text":"b"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var texts []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		texts = append(texts, rec.Text)
	}
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Errorf("texts = %q, want [a b]", texts)
	}
}
