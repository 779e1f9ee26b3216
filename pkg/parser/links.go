package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var skippedHrefPrefixes = []string{"#", "mailto:", "tel:", "javascript:"}

// ExtractLinks returns the absolute targets of every anchor in rawHTML,
// resolved against pageURL, in document order and without repeats.
// Fragment-only, mailto:, tel: and javascript: hrefs are dropped.
func ExtractLinks(pageURL, rawHTML string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || hasSkippedPrefix(href) {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		link := resolved.String()
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
