package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dtnitsch/corpus-postprocessor/models"
	"github.com/dtnitsch/corpus-postprocessor/pkg/parser"
)

// DirSource serves every .txt, .html and .htm file of a directory tree as
// one document, in lexical path order. HTML is reduced to its main content.
type DirSource struct {
	name string
	root string
}

func NewDirSource(name, root string) *DirSource {
	return &DirSource{name: name, root: root}
}

func (s *DirSource) Name() string { return s.name }

func (s *DirSource) Open() (Cursor, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isTextFile(path) || isHTMLFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.name, err)
	}
	sort.Strings(files)
	return &dirCursor{root: s.root, files: files, parser: &parser.Parser{}}, nil
}

type dirCursor struct {
	root   string
	files  []string
	pos    int
	parser *parser.Parser
}

func (c *dirCursor) Next() (models.Document, error) {
	if c.pos >= len(c.files) {
		return models.Document{}, io.EOF
	}
	index := c.pos
	path := c.files[c.pos]
	c.pos++

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	meta := models.NewMeta()
	meta.Set("name", filepath.ToSlash(rel))
	text := string(data)

	if isHTMLFile(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		page, err := c.parser.ParseToText("file://"+filepath.ToSlash(abs), text)
		if err != nil {
			return models.Document{}, fmt.Errorf("parse %s: %w", path, err)
		}
		text = page.Text
		if page.Title != "" {
			meta.Set("title", page.Title)
		}
	}
	return models.Document{Index: index, Text: text, Meta: meta}, nil
}

func (c *dirCursor) Close() error { return nil }

func isTextFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}

func isHTMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}
