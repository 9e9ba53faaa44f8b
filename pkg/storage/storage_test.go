package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveFileCreatesDirsAndReplaces(t *testing.T) {
	s := &Storage{}
	path := filepath.Join(t.TempDir(), "a", "b", "x.manifest")

	if err := s.SaveFile(path, []byte("one")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if err := s.SaveFile(path, []byte("two")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	data, err := s.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want two", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no temp leftovers)", len(entries))
	}
}

func TestMoveFile(t *testing.T) {
	s := &Storage{}
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "run", "x.jsonl.zst")
	dst := filepath.Join(dir, "out", "x.jsonl.zst")

	if err := s.SaveFile(src, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(dst, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile() error = %v", err)
	}
	if s.HasFile(src) {
		t.Error("source still exists after move")
	}
	stats, err := s.GetFileStats(dst)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SizeBytes != int64(len("payload")) || stats.IsDir {
		t.Errorf("stats = %+v, want %d-byte regular file", stats, len("payload"))
	}

	dirStats, err := s.GetFileStats(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if !dirStats.IsDir {
		t.Error("GetFileStats() on a directory: IsDir = false")
	}
}

func TestRemoveAllMissingPath(t *testing.T) {
	s := &Storage{}
	if err := s.RemoveAll(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("RemoveAll() on missing path = %v", err)
	}
}
