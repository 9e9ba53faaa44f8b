// Package parser turns HTML pages into plain-text documents.
package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Page is the plain-text rendering of an HTML document.
type Page struct {
	URL   string
	Title string
	Text  string
}

type Parser struct{}

// ParseToText uses go-readability to find the main article content and
// renders its blocks as paragraphs separated by blank lines. Tables become
// tab-separated rows and code blocks keep their line breaks.
func (p *Parser) ParseToText(rawURL, html string) (*Page, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	rp := readability.NewParser()
	article, err := rp.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("parse article: %w", err)
	}

	var blocks []string
	doc.Find("h1,h2,h3,h4,p,li,table,pre").Each(func(i int, s *goquery.Selection) {
		// Nested matches are rendered by their outermost block.
		if s.ParentsFiltered("li,table,pre").Length() > 0 {
			return
		}
		var text string
		switch goquery.NodeName(s) {
		case "table":
			text = tableText(s)
		case "pre":
			text = strings.TrimSpace(s.Text())
		default:
			text = normalizeText(s.Text())
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		if text := normalizeText(article.TextContent); text != "" {
			blocks = append(blocks, text)
		}
	}

	return &Page{
		URL:   rawURL,
		Title: normalizeText(article.Title),
		Text:  strings.Join(blocks, "\n\n"),
	}, nil
}

// normalizeText cleans up a string by trimming space and removing excess newlines.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func tableText(s *goquery.Selection) string {
	var rows []string
	s.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(j int, cell *goquery.Selection) {
			cells = append(cells, normalizeText(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, "\t"))
		}
	})
	return strings.Join(rows, "\n")
}
