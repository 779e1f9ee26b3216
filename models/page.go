package models

import "strings"

// TextBlock is one whitespace-normalized string taken from a structural element.
type TextBlock struct {
	Tag  string `json:"tag" yaml:"tag"` // e.g., "h1", "p", "li", "dd"
	Text string `json:"text" yaml:"text"`
}

// PageRecord is provenance for one successfully fetched and extracted page.
type PageRecord struct {
	URL      string `json:"url" yaml:"url"`
	Language string `json:"language" yaml:"language"`
	Chars    int    `json:"chars" yaml:"chars"`
}

// Page represents the extracted content of a single web page.
type Page struct {
	URL    string      `json:"url"`
	Title  string      `json:"title"`
	Blocks []TextBlock `json:"blocks"`
}

// Lines returns the block texts in document order.
func (p *Page) Lines() []string {
	lines := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		lines = append(lines, b.Text)
	}
	return lines
}

// ToPlainText joins all block texts with newlines.
func (p *Page) ToPlainText() string {
	return strings.Join(p.Lines(), "\n")
}
