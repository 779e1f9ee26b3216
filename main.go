package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/school-kb/internal/crawl"
	"github.com/dtnitsch/school-kb/internal/query"
	"github.com/dtnitsch/school-kb/internal/serve"
	"github.com/dtnitsch/school-kb/models"
	"github.com/urfave/cli/v2"
)

func main() {
	serve.LoadEnv()

	logFlags := []cli.Flag{
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug details"},
	}

	app := &cli.App{
		Name:  "school-kb",
		Usage: "Build and serve a bilingual FAQ knowledge base from a school website",
		Commands: []*cli.Command{
			{
				Name:   "crawl",
				Usage:  "Crawl a site and write context, FAQ candidates and a source manifest",
				Action: crawl.CrawlAction,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Seed URL; only links under it are followed", Required: true},
					&cli.IntFlag{Name: "max-pages", Value: models.DefaultMaxPages, Usage: "Maximum pages to process"},
					&cli.DurationFlag{Name: "delay", Value: models.DefaultCrawlDelay, Usage: "Pause between page fetches"},
					&cli.DurationFlag{Name: "timeout", Value: models.DefaultFetchTimeout, Usage: "Per-request timeout"},
					&cli.BoolFlag{Name: "ignore-robots", Usage: "Do not consult robots.txt"},
					&cli.BoolFlag{Name: "with-openai", Usage: "Refine FAQ pairs into bilingual CSV (needs OPENAI_API_KEY)"},
					&cli.StringFlag{Name: "output-dir", Value: models.DefaultOutputDir, Usage: "Directory for artifacts"},
					&cli.StringFlag{Name: "user-agent", Value: models.DefaultUserAgent, Usage: "User-Agent for fetches and robots rules"},
				}, logFlags...),
			},
			{
				Name:   "serve",
				Usage:  "Serve the chat API backed by a knowledge CSV",
				Action: serve.ServeAction,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "addr", Value: models.DefaultServeAddr, EnvVars: []string{"ADDR"}},
					&cli.StringFlag{Name: "csv-url", EnvVars: []string{"CSV_URL"}, Usage: "Knowledge CSV: http(s) URL, file:// URL or path"},
					&cli.StringFlag{Name: "cache-ttl", Value: models.DefaultCacheTTL.String(), EnvVars: []string{"CACHE_TTL"}, Usage: "Knowledge cache TTL, a duration or seconds"},
					&cli.Float64Flag{Name: "cutoff", Value: models.DefaultMatchCutoff, EnvVars: []string{"MATCH_CUTOFF"}, Usage: "Fuzzy match cutoff, 0..1"},
					&cli.StringFlag{Name: "frame-ancestors", Value: models.DefaultFrameAncestors, EnvVars: []string{"FRAME_ANCESTORS"}},
					&cli.StringFlag{Name: "admin-token", EnvVars: []string{"ADMIN_TOKEN"}},
					&cli.StringFlag{Name: "openai-api-key", EnvVars: []string{"OPENAI_API_KEY"}},
					&cli.StringFlag{Name: "openai-model", EnvVars: []string{"OPENAI_MODEL"}},
					&cli.StringFlag{Name: "openai-base-url", EnvVars: []string{"OPENAI_BASE_URL"}},
				}, logFlags...),
			},
			{
				Name:      "query",
				Usage:     "Print knowledge counts and the closest question for a text",
				ArgsUsage: "QUESTION",
				Action:    query.QueryAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "csv-url", EnvVars: []string{"CSV_URL"}, Required: true},
					&cli.Float64Flag{Name: "cutoff", Value: models.DefaultMatchCutoff, EnvVars: []string{"MATCH_CUTOFF"}},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
