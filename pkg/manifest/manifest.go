package manifest

import "github.com/dtnitsch/school-kb/models"

// CrawlManifest is written as sources.yaml next to the crawl artifacts.
// It records where every context line came from so a reviewer can trace an
// FAQ answer back to a page without re-crawling.
type CrawlManifest struct {
	RunID       string              `yaml:"run_id"`
	Seed        string              `yaml:"seed"`
	StartedAt   string              `yaml:"started_at"`
	FinishedAt  string              `yaml:"finished_at"`
	DurationMS  int64               `yaml:"duration_ms"`
	Settings    Settings            `yaml:"settings"`
	Counts      Counts              `yaml:"counts"`
	ContextHash string              `yaml:"context_sha256,omitempty"`
	Languages   map[string]int      `yaml:"languages,omitempty"`
	Pages       []models.PageRecord `yaml:"pages"`
	Skipped     []SkippedURL        `yaml:"skipped,omitempty"`
	Refinement  Refinement          `yaml:"refinement"`
}

type Settings struct {
	MaxPages     int    `yaml:"max_pages"`
	Delay        string `yaml:"delay"`
	IgnoreRobots bool   `yaml:"ignore_robots"`
	UserAgent    string `yaml:"user_agent"`
}

type Counts struct {
	Pages        int `yaml:"pages"`
	Skipped      int `yaml:"skipped"`
	Pending      int `yaml:"pending"`
	ContextLines int `yaml:"context_lines"`
	FAQPairs     int `yaml:"faq_pairs"`
}

type SkippedURL struct {
	URL    string `yaml:"url"`
	Reason string `yaml:"reason"`
	Error  string `yaml:"error,omitempty"`
}

// Refinement status values.
const (
	RefineDisabled = "disabled"
	RefineSkipped  = "skipped"
	RefineFailed   = "failed"
	RefineOK       = "ok"
)

type Refinement struct {
	Status string `yaml:"status"`
	Rows   int    `yaml:"rows,omitempty"`
	File   string `yaml:"file,omitempty"`
	Error  string `yaml:"error,omitempty"`
}
