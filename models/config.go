// Package models defines data structures shared by the crawl and serve pipelines.
package models

import (
	"fmt"
	"time"
)

// Crawl defaults. Tuned by trial against a handful of district sites.
const (
	DefaultMaxPages     = 15
	DefaultCrawlDelay   = 700 * time.Millisecond
	DefaultFetchTimeout = 15 * time.Second
	DefaultOutputDir    = "site_extract"
	DefaultUserAgent    = "Mozilla/5.0 (compatible; SchoolBot/1.0)"
	DefaultRefineRows   = 25
)

// Serve defaults.
const (
	DefaultCacheTTL       = 300 * time.Second
	DefaultMatchCutoff    = 0.55
	DefaultServeAddr      = "127.0.0.1:5000"
	DefaultFrameAncestors = "self *"
	DefaultSourceTimeout  = 20 * time.Second
	DefaultRetryInterval  = 30 * time.Second
)

// CrawlConfig holds runtime configuration for a crawl.
// All values come from CLI flags, not external config files.
type CrawlConfig struct {
	SeedURL      string
	MaxPages     int
	Delay        time.Duration
	Timeout      time.Duration
	IgnoreRobots bool
	WithOpenAI   bool
	OutputDir    string
	UserAgent    string
}

// ServeConfig holds runtime configuration for the chat server.
type ServeConfig struct {
	Addr           string
	CSVSource      string
	CacheTTL       time.Duration
	MatchCutoff    float64
	FrameAncestors string
	AdminToken     string
	OpenAIKey      string
	OpenAIModel    string
	OpenAIBaseURL  string
}

// WithDefaults fills zero values with the package defaults.
func (c CrawlConfig) WithDefaults() CrawlConfig {
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// WithDefaults fills unset values with the package defaults. A zero CacheTTL
// (reload on every request) and a zero MatchCutoff (always hint the closest
// entry) are valid settings; only negative or out-of-range values are reset.
func (c ServeConfig) WithDefaults() ServeConfig {
	if c.Addr == "" {
		c.Addr = DefaultServeAddr
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MatchCutoff < 0 || c.MatchCutoff > 1 {
		c.MatchCutoff = DefaultMatchCutoff
	}
	if c.FrameAncestors == "" {
		c.FrameAncestors = DefaultFrameAncestors
	}
	return c
}

// ValidateCutoff rejects match cutoffs outside [0, 1].
func ValidateCutoff(cutoff float64) error {
	if cutoff < 0 || cutoff > 1 {
		return fmt.Errorf("cutoff %v is outside [0, 1]", cutoff)
	}
	return nil
}
