package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dataset is a named source found under the input directory.
type Dataset struct {
	Name   string
	Path   string
	Source Source
}

// Discover lists datasets under dir: every .jsonl.zst or .jsonl file and
// every subdirectory. When both compressed and plain files exist for a
// name, the compressed one wins. Results are sorted by name.
func Discover(dir string) ([]Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	found := map[string]Dataset{}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		switch {
		case e.IsDir():
			if _, ok := found[name]; !ok {
				found[name] = Dataset{Name: name, Path: path, Source: NewDirSource(name, path)}
			}
		case strings.HasSuffix(name, ".jsonl.zst"):
			base := strings.TrimSuffix(name, ".jsonl.zst")
			found[base] = Dataset{Name: base, Path: path, Source: NewFileSource(base, path)}
		case strings.HasSuffix(name, ".jsonl"):
			base := strings.TrimSuffix(name, ".jsonl")
			if prev, ok := found[base]; ok && strings.HasSuffix(prev.Path, ".jsonl.zst") {
				continue
			}
			found[base] = Dataset{Name: base, Path: path, Source: NewFileSource(base, path)}
		}
	}

	out := make([]Dataset, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
