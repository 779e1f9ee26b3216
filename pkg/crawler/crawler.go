package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dtnitsch/school-kb/internal/common"
	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/extractors"
	"github.com/dtnitsch/school-kb/pkg/fetcher"
	"github.com/dtnitsch/school-kb/pkg/parser"
)

// ErrEmptyCrawl means not a single page could be fetched and extracted,
// usually because the seed is unreachable or not HTML.
var ErrEmptyCrawl = errors.New("crawl produced no pages")

// Outcome is the terminal state of a crawl target.
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeRobots      Outcome = "skipped_robots"
	OutcomeScheme      Outcome = "skipped_scheme"
	OutcomeFetch       Outcome = "skipped_fetch"
	OutcomeContentType Outcome = "skipped_content_type"
	OutcomeParse       Outcome = "skipped_parse"
)

// Skip records a target that was dequeued but not processed.
type Skip struct {
	URL    string  `yaml:"url"`
	Reason Outcome `yaml:"reason"`
	Error  string  `yaml:"error,omitempty"`
}

// Result accumulates everything a crawl produced, in crawl order.
type Result struct {
	Seed       string
	Pages      []models.PageRecord
	Blocks     []string
	FAQ        []models.QAPair
	Skipped    []Skip
	Pending    int // discovered but never dequeued
	StartedAt  time.Time
	FinishedAt time.Time
}

// RawContext is every extracted block, one per line.
func (r *Result) RawContext() string {
	return strings.Join(r.Blocks, "\n")
}

// PageFetcher retrieves one URL. *fetcher.Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// LanguageDetector tags text with a language code.
type LanguageDetector interface {
	Detect(text string) string
}

// DelayHinter supplies a per-URL minimum delay, e.g. a robots.txt Crawl-delay.
type DelayHinter interface {
	CrawlDelay(ctx context.Context, u *url.URL) time.Duration
}

type Crawler struct {
	fetcher  PageFetcher
	detector LanguageDetector
	parser   *parser.Parser
	hinter   DelayHinter
	logger   *slog.Logger
	maxPages int
	delay    time.Duration
}

type Option func(*Crawler)

func WithDelayHinter(h DelayHinter) Option {
	return func(c *Crawler) { c.hinter = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(cfg models.CrawlConfig, f PageFetcher, d LanguageDetector, opts ...Option) *Crawler {
	cfg = cfg.WithDefaults()
	c := &Crawler{
		fetcher:  f,
		detector: d,
		parser:   &parser.Parser{},
		logger:   slog.Default(),
		maxPages: cfg.MaxPages,
		delay:    cfg.Delay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type target struct {
	raw  string // as discovered; used for fetching and resolving relative links
	norm string // identity for the seen-set
}

// Crawl walks same-site links breadth-first from seed until the queue drains
// or MaxPages pages have been processed. Per-page failures are recorded and
// skipped. A cancelled ctx stops the crawl and returns what was gathered.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*Result, error) {
	seed = common.SanitizeURL(seed)
	seedNorm, err := common.NormalizeURL(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seed, err)
	}

	res := &Result{Seed: seedNorm, StartedAt: time.Now()}
	queue := []target{{raw: stripFragment(seed), norm: seedNorm}}
	enqueued := map[string]struct{}{seedNorm: {}}
	seen := make(map[string]struct{})

	c.logger.Info("Starting crawl", "seed", seedNorm, "max_pages", c.maxPages, "delay", c.delay)

	for len(queue) > 0 && len(res.Pages) < c.maxPages {
		if err := ctx.Err(); err != nil {
			res.Pending = len(queue)
			res.FinishedAt = time.Now()
			return res, err
		}

		current := queue[0]
		queue = queue[1:]
		if _, ok := seen[current.norm]; ok {
			continue
		}
		seen[current.norm] = struct{}{}

		resp, err := c.fetcher.Fetch(ctx, current.raw)
		if err != nil {
			reason := classify(err)
			c.logger.Warn("Skipping URL", "url", current.raw, "reason", reason, "error", err)
			res.Skipped = append(res.Skipped, Skip{URL: current.raw, Reason: reason, Error: err.Error()})
			continue
		}
		if !resp.IsHTML() {
			c.logger.Debug("Skipping non-HTML URL", "url", current.raw, "content_type", resp.ContentType)
			res.Skipped = append(res.Skipped, Skip{URL: current.raw, Reason: OutcomeContentType, Error: resp.ContentType})
			continue
		}

		rawHTML := string(resp.Body)
		page, err := c.parser.Parse(current.raw, rawHTML)
		if err != nil {
			c.logger.Warn("Skipping unparseable URL", "url", current.raw, "error", err)
			res.Skipped = append(res.Skipped, Skip{URL: current.raw, Reason: OutcomeParse, Error: err.Error()})
			continue
		}

		text := page.ToPlainText()
		lang := c.detector.Detect(text)
		faq := extractors.ExtractFAQ(page)
		res.Pages = append(res.Pages, models.PageRecord{
			URL:      current.raw,
			Language: lang,
			Chars:    utf8.RuneCountInString(text),
		})
		res.Blocks = append(res.Blocks, page.Lines()...)
		res.FAQ = append(res.FAQ, faq...)

		for _, link := range parser.ExtractLinks(current.raw, rawHTML) {
			next, ok := admit(link, seedNorm)
			if !ok {
				continue
			}
			if _, done := seen[next.norm]; done {
				continue
			}
			if _, queued := enqueued[next.norm]; queued {
				continue
			}
			enqueued[next.norm] = struct{}{}
			queue = append(queue, next)
		}

		c.logger.Info("Processed page", "url", current.raw, "language", lang, "blocks", len(page.Blocks), "faq_pairs", len(faq), "queue", len(queue))

		if len(queue) > 0 && len(res.Pages) < c.maxPages {
			if err := c.pause(ctx, current.raw); err != nil {
				res.Pending = len(queue)
				res.FinishedAt = time.Now()
				return res, err
			}
		}
	}

	res.Pending = countUnseen(queue, seen)
	res.FinishedAt = time.Now()
	c.logger.Info("Crawl finished", "seed", seedNorm, "pages", len(res.Pages), "skipped", len(res.Skipped), "faq_pairs", len(res.FAQ), "pending", res.Pending)

	if len(res.Pages) == 0 {
		return res, fmt.Errorf("%w: seed %s", ErrEmptyCrawl, seedNorm)
	}
	return res, nil
}

// admit applies the same-site rules: same registrable domain as the seed and
// normalized form prefixed by the normalized seed.
func admit(link, seedNorm string) (target, bool) {
	norm, err := common.NormalizeURL(link)
	if err != nil {
		return target{}, false
	}
	if !common.SameSite(norm, seedNorm) || !strings.HasPrefix(norm, seedNorm) {
		return target{}, false
	}
	return target{raw: stripFragment(link), norm: norm}, true
}

// pause sleeps for the configured delay, stretched to any robots Crawl-delay.
func (c *Crawler) pause(ctx context.Context, rawURL string) error {
	delay := c.delay
	if c.hinter != nil {
		if u, err := url.Parse(rawURL); err == nil {
			if hint := c.hinter.CrawlDelay(ctx, u); hint > delay {
				delay = hint
			}
		}
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, fetcher.ErrNotAllowed):
		return OutcomeRobots
	case errors.Is(err, fetcher.ErrUnsupportedScheme):
		return OutcomeScheme
	default:
		return OutcomeFetch
	}
}

func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func countUnseen(queue []target, seen map[string]struct{}) int {
	n := 0
	for _, t := range queue {
		if _, ok := seen[t.norm]; !ok {
			n++
		}
	}
	return n
}
