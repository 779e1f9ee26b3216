package models

import "strings"

// Language is a knowledge base language tag.
type Language string

const (
	English  Language = "en"
	Spanish  Language = "es"
	Japanese Language = "ja"
)

// Languages lists the supported knowledge languages in context order.
var Languages = []Language{English, Spanish, Japanese}

// ParseLanguage maps a loose language hint ("EN", " es ") to a supported Language.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en":
		return English, true
	case "es":
		return Spanish, true
	case "ja":
		return Japanese, true
	}
	return "", false
}

// KnowledgeEntry is a single cached question/answer pair.
type KnowledgeEntry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// QAPair is a mined FAQ candidate with the page it came from.
type QAPair struct {
	Question  string `json:"question" yaml:"question"`
	Answer    string `json:"answer" yaml:"answer"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}
