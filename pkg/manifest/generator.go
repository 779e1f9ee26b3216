package manifest

import (
	"fmt"
	"time"

	"github.com/dtnitsch/school-kb/internal/common"
	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/crawler"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Build summarizes a crawl result. res may be partial (an empty or
// cancelled crawl still gets a manifest).
func Build(cfg models.CrawlConfig, res *crawler.Result, refine Refinement) CrawlManifest {
	cfg = cfg.WithDefaults()
	m := CrawlManifest{
		RunID: uuid.NewString(),
		Settings: Settings{
			MaxPages:     cfg.MaxPages,
			Delay:        cfg.Delay.String(),
			IgnoreRobots: cfg.IgnoreRobots,
			UserAgent:    cfg.UserAgent,
		},
		Refinement: refine,
	}
	if m.Refinement.Status == "" {
		m.Refinement.Status = RefineDisabled
	}
	if res == nil {
		m.Seed = cfg.SeedURL
		return m
	}

	m.Seed = res.Seed
	m.StartedAt = res.StartedAt.UTC().Format(time.RFC3339)
	m.FinishedAt = res.FinishedAt.UTC().Format(time.RFC3339)
	m.DurationMS = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	m.Pages = res.Pages
	m.Counts = Counts{
		Pages:        len(res.Pages),
		Skipped:      len(res.Skipped),
		Pending:      res.Pending,
		ContextLines: len(res.Blocks),
		FAQPairs:     len(res.FAQ),
	}
	if len(res.Blocks) > 0 {
		m.ContextHash = common.ContentHash([]byte(res.RawContext()))
	}

	if len(res.Pages) > 0 {
		m.Languages = make(map[string]int)
		for _, p := range res.Pages {
			m.Languages[p.Language]++
		}
	}
	for _, s := range res.Skipped {
		m.Skipped = append(m.Skipped, SkippedURL{URL: s.URL, Reason: string(s.Reason), Error: s.Error})
	}
	return m
}

// Marshal renders the manifest as YAML.
func Marshal(m CrawlManifest) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}
