package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/school-kb/models"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Subtrees that never contribute text blocks.
const boilerplateSelector = "script,style,nav,footer,header,form,noscript"

// Elements that become text blocks, collected in document order.
const blockSelector = "h1,h2,h3,p,li,dt,dd"

type Parser struct{}

// Parse extracts the title and the ordered text blocks of a page.
// The readability pass isolates the main content; if it fails or yields no
// blocks the full document is used instead.
func (p *Parser) Parse(rawURL, rawHTML string) (*models.Page, error) {
	full, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	title := normalizeText(full.Find("title").First().Text())

	var blocks []models.TextBlock
	if article, ok := mainContent(rawURL, rawHTML); ok {
		if title == "" {
			title = normalizeText(article.Title)
		}
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			blocks = extractBlocks(doc)
		}
	}
	if len(blocks) == 0 {
		blocks = extractBlocks(full)
	}

	return &models.Page{
		URL:    rawURL,
		Title:  title,
		Blocks: blocks,
	}, nil
}

// Extract is Parse without the page wrapper. A document that cannot be parsed
// yields no blocks.
func (p *Parser) Extract(rawURL, rawHTML string) []models.TextBlock {
	page, err := p.Parse(rawURL, rawHTML)
	if err != nil {
		return nil
	}
	return page.Blocks
}

func mainContent(rawURL, rawHTML string) (readability.Article, bool) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		pageURL = &url.URL{}
	}
	readabilityParser := readability.NewParser()
	article, err := readabilityParser.Parse(strings.NewReader(rawHTML), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return readability.Article{}, false
	}
	return article, true
}

// extractBlocks strips boilerplate from doc (in place) and walks the block
// elements. Nested matches (a <p> inside an <li>) each produce a block.
func extractBlocks(doc *goquery.Document) []models.TextBlock {
	doc.Find(boilerplateSelector).Remove()

	var blocks []models.TextBlock
	doc.Find(blockSelector).Each(func(i int, s *goquery.Selection) {
		text := normalizeText(nodeText(s))
		if text == "" {
			return
		}
		blocks = append(blocks, models.TextBlock{
			Tag:  goquery.NodeName(s),
			Text: text,
		})
	})
	return blocks
}

// nodeText joins the element's text nodes with single spaces so that
// "<li>Mon<br>Tue</li>" reads "Mon Tue" rather than "MonTue".
func nodeText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// normalizeText collapses whitespace runs to single spaces and trims.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
