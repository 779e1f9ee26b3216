package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/school-kb/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, rawHTML string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	require.NoError(t, err)
	return doc
}

func TestExtractBlocks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []models.TextBlock
	}{
		{
			name: "document order across block types",
			html: `<body><h1>Welcome</h1><p>First   paragraph
				spans lines.</p><ul><li>One</li><li>Two</li></ul>
				<dl><dt>Hours?</dt><dd>8 to 3.</dd></dl><h3>Contact</h3></body>`,
			want: []models.TextBlock{
				{Tag: "h1", Text: "Welcome"},
				{Tag: "p", Text: "First paragraph spans lines."},
				{Tag: "li", Text: "One"},
				{Tag: "li", Text: "Two"},
				{Tag: "dt", Text: "Hours?"},
				{Tag: "dd", Text: "8 to 3."},
				{Tag: "h3", Text: "Contact"},
			},
		},
		{
			name: "boilerplate removed",
			html: `<body><header><h1>Site</h1></header><nav><li>Menu</li></nav>
				<p>Body text</p><script>var x = 1;</script><style>p{}</style>
				<form><p>Search</p></form><noscript><p>Enable JS</p></noscript>
				<footer><p>Copyright</p></footer></body>`,
			want: []models.TextBlock{{Tag: "p", Text: "Body text"}},
		},
		{
			name: "empty blocks dropped",
			html: `<body><p>   </p><h2>
			</h2><li>Kept</li></body>`,
			want: []models.TextBlock{{Tag: "li", Text: "Kept"}},
		},
		{
			name: "inline breaks become spaces",
			html: `<body><li>Mon<br>Tue<span>Wed</span></li></body>`,
			want: []models.TextBlock{{Tag: "li", Text: "Mon Tue Wed"}},
		},
		{
			name: "headings below h3 ignored",
			html: `<body><h4>Small</h4><h2>Big</h2></body>`,
			want: []models.TextBlock{{Tag: "h2", Text: "Big"}},
		},
		{
			name: "nothing extractable",
			html: `<body><div>Just a div</div></body>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractBlocks(mustDoc(t, tt.html))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	rawHTML := `<!doctype html><html><head><title> Lincoln  Elementary </title></head>
<body>
<nav><ul><li>Home</li><li>Calendar</li></ul></nav>
<article>
<h2>Frequently asked questions</h2>
<p>Parents often ask us about arrival times, lunch, transportation and the calendar for the school year.</p>
<p>What time does school start?</p>
<p>Doors open at 7:45 and classes begin at 8:00 every weekday morning for all grades.</p>
<p>Is breakfast provided?</p>
<p>Breakfast is served free of charge in the cafeteria from 7:30 until the first bell rings.</p>
</article>
<footer><p>Copyright Lincoln Elementary</p></footer>
</body></html>`

	p := &Parser{}
	page, err := p.Parse("https://lincoln.example.org/faq", rawHTML)
	require.NoError(t, err)

	assert.Equal(t, "https://lincoln.example.org/faq", page.URL)
	assert.Equal(t, "Lincoln Elementary", page.Title)

	lines := page.Lines()
	assert.Contains(t, lines, "What time does school start?")
	assert.Contains(t, lines, "Doors open at 7:45 and classes begin at 8:00 every weekday morning for all grades.")
	assert.NotContains(t, lines, "Home")
	for _, line := range lines {
		assert.Equal(t, strings.TrimSpace(line), line)
		assert.NotEmpty(t, line)
	}
}

func TestExtractFallsBackToFullDocument(t *testing.T) {
	p := &Parser{}
	blocks := p.Extract("https://example.org/", `<html><body><li>Only item</li></body></html>`)
	require.NotEmpty(t, blocks)
	assert.Equal(t, "Only item", blocks[len(blocks)-1].Text)
}
