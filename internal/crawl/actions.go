package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/school-kb/internal/common"
	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/artifact_manager"
	"github.com/dtnitsch/school-kb/pkg/crawler"
	"github.com/dtnitsch/school-kb/pkg/detector"
	"github.com/dtnitsch/school-kb/pkg/fetcher"
	"github.com/dtnitsch/school-kb/pkg/llm"
	"github.com/dtnitsch/school-kb/pkg/manifest"
	"github.com/dtnitsch/school-kb/pkg/refiner"
	"github.com/urfave/cli/v2"
)

// Summary is printed to stdout when the crawl finishes.
type Summary struct {
	Seed       string            `yaml:"seed"`
	Pages      int               `yaml:"pages"`
	Skipped    int               `yaml:"skipped"`
	FAQPairs   int               `yaml:"faq_pairs"`
	Refinement string            `yaml:"refinement"`
	Artifacts  map[string]string `yaml:"artifacts"`
}

func CrawlAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"), c.Bool("verbose"))

	cfg := models.CrawlConfig{
		SeedURL:      c.String("url"),
		MaxPages:     c.Int("max-pages"),
		Delay:        c.Duration("delay"),
		Timeout:      c.Duration("timeout"),
		IgnoreRobots: c.Bool("ignore-robots"),
		WithOpenAI:   c.Bool("with-openai"),
		OutputDir:    c.String("output-dir"),
		UserAgent:    c.String("user-agent"),
	}.WithDefaults()
	if cfg.SeedURL == "" {
		return cli.Exit("Error: --url is required", 2)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := Run(ctx, cfg, logger, refinerFromEnv(cfg, logger))
	if summary != nil {
		if printErr := common.PrintYAML(os.Stdout, summary); printErr != nil {
			logger.Error("failed to print summary", "error", printErr)
		}
	}
	if errors.Is(err, crawler.ErrEmptyCrawl) {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	return nil
}

// Run crawls cfg.SeedURL and writes every artifact. The refiner may be nil.
// Artifacts are written even for an empty or cancelled crawl so the
// manifest explains what happened.
func Run(ctx context.Context, cfg models.CrawlConfig, logger *slog.Logger, ref *refiner.Refiner) (*Summary, error) {
	opts := []fetcher.Option{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithTimeout(cfg.Timeout),
	}
	if cfg.IgnoreRobots {
		opts = append(opts, fetcher.IgnoreRobots())
	}
	f := fetcher.NewFetcher(opts...)

	crawlOpts := []crawler.Option{crawler.WithLogger(logger)}
	if robots := f.Robots(); robots != nil {
		crawlOpts = append(crawlOpts, crawler.WithDelayHinter(robots))
	}
	cr := crawler.New(cfg, f, detector.NewDetector(), crawlOpts...)

	res, crawlErr := cr.Crawl(ctx, cfg.SeedURL)
	if res == nil {
		return nil, crawlErr
	}

	manager := artifact_manager.NewManager(cfg.OutputDir)
	summary := &Summary{
		Seed:      res.Seed,
		Pages:     len(res.Pages),
		Skipped:   len(res.Skipped),
		FAQPairs:  len(res.FAQ),
		Artifacts: map[string]string{},
	}

	rawContext := res.RawContext()
	path, err := manager.WriteContext(rawContext)
	if err != nil {
		return summary, err
	}
	summary.Artifacts["context"] = path

	path, err = manager.WriteFAQCandidates(res.FAQ)
	if err != nil {
		return summary, err
	}
	summary.Artifacts["faq_candidates"] = path

	refinement := refine(ctx, cfg, ref, rawContext, len(res.Pages), manager, logger)
	summary.Refinement = refinement.Status
	if refinement.File != "" {
		summary.Artifacts["refined"] = refinement.File
	} else if removed, err := manager.RemoveRefined(); err != nil {
		logger.Warn("Could not remove refined CSV from an earlier run", "error", err)
	} else if removed {
		logger.Info("Removed refined CSV from an earlier run", "file", manager.Path(artifact_manager.RefinedFile))
	}

	path, err = manager.WriteManifest(manifest.Build(cfg, res, refinement))
	if err != nil {
		return summary, err
	}
	summary.Artifacts["manifest"] = path

	logger.Info("Wrote crawl artifacts", "dir", manager.BaseDir(), "pages", summary.Pages, "faq_pairs", summary.FAQPairs, "refinement", summary.Refinement)
	return summary, crawlErr
}

func refine(ctx context.Context, cfg models.CrawlConfig, ref *refiner.Refiner, rawContext string, pages int, manager *artifact_manager.Manager, logger *slog.Logger) manifest.Refinement {
	switch {
	case !cfg.WithOpenAI:
		return manifest.Refinement{Status: manifest.RefineDisabled}
	case ref == nil:
		logger.Warn("Skipping refinement", "reason", "OPENAI_API_KEY is not set")
		return manifest.Refinement{Status: manifest.RefineSkipped, Error: llm.ErrNotConfigured.Error()}
	case pages == 0 || rawContext == "":
		return manifest.Refinement{Status: manifest.RefineSkipped, Error: "no context to refine"}
	}

	refined, err := ref.Refine(ctx, rawContext)
	if err != nil {
		logger.Warn("Refinement failed, keeping heuristic FAQ candidates", "error", err)
		return manifest.Refinement{Status: manifest.RefineFailed, Error: err.Error()}
	}
	path, err := manager.WriteRefined(refined.CSV)
	if err != nil {
		logger.Error("failed to write refined CSV", "error", err)
		return manifest.Refinement{Status: manifest.RefineFailed, Error: err.Error()}
	}
	if refined.Malformed > 0 {
		logger.Warn("Refinement response had malformed rows", "malformed_rows", refined.Malformed)
	}
	return manifest.Refinement{Status: manifest.RefineOK, Rows: refined.Rows, File: path}
}

func refinerFromEnv(cfg models.CrawlConfig, logger *slog.Logger) *refiner.Refiner {
	if !cfg.WithOpenAI {
		return nil
	}
	provider, err := llm.NewOpenAIProvider(llm.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	})
	if err != nil {
		logger.Debug("OpenAI provider unavailable", "error", err)
		return nil
	}
	return refiner.New(provider, models.DefaultRefineRows)
}
