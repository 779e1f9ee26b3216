package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/crawler"
	"github.com/dtnitsch/school-kb/pkg/llm"
	"github.com/dtnitsch/school-kb/pkg/manifest"
	"github.com/dtnitsch/school-kb/pkg/refiner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const faqPage = `<html><head><title>FAQ</title></head><body><main>
<h1>Frequently asked questions</h1>
<p>These are the questions families ask the front office most often during the year.</p>
<p>When does the school day end?</p>
<p>Dismissal is at 3:15 in the afternoon from the main doors, with buses leaving at 3:25.</p>
<p><a href="/calendar">Calendar</a> <a href="/private/staff">Staff</a></p>
</main></body></html>`

const calendarPage = `<html><body><main>
<h2>Calendar</h2>
<p>The first day of school is the second Monday of August for every grade level in the district.</p>
</main></body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Welcome to Lincoln Elementary, home of the Lions, serving families since 1952.</p><a href="/faq">FAQ</a></body></html>`)
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, faqPage)
	})
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, calendarPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readManifest(t *testing.T, dir string) manifest.CrawlManifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "sources.yaml"))
	require.NoError(t, err)
	var m manifest.CrawlManifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	return m
}

func TestRunWritesArtifacts(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := models.CrawlConfig{SeedURL: srv.URL + "/", MaxPages: 5, OutputDir: dir}

	summary, err := Run(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, manifest.RefineDisabled, summary.Refinement)

	contextMD, err := os.ReadFile(filepath.Join(dir, "context_en.md"))
	require.NoError(t, err)
	assert.Contains(t, string(contextMD), "When does the school day end?")
	assert.Contains(t, string(contextMD), "second Monday of August")

	faq, err := os.ReadFile(filepath.Join(dir, "faq_candidates.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(faq), "question,answer,source_url\n")
	assert.Contains(t, string(faq), "When does the school day end?,")

	_, err = os.Stat(filepath.Join(dir, "faq_en_es.csv"))
	assert.True(t, os.IsNotExist(err))

	m := readManifest(t, dir)
	assert.Equal(t, 3, m.Counts.Pages)
	require.Len(t, m.Skipped, 1)
	assert.Equal(t, string(crawler.OutcomeRobots), m.Skipped[0].Reason)
}

func TestRunWithRefinement(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := models.CrawlConfig{SeedURL: srv.URL + "/faq", MaxPages: 1, OutputDir: dir, WithOpenAI: true}

	ref := refiner.New(llm.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return "```csv\nquestion_en,answer_en,question_es,answer_es\nWhen does school end?,3:15,¿Cuándo termina la escuela?,A las 3:15\n```", nil
	}), 0)

	summary, err := Run(context.Background(), cfg, quietLogger(), ref)
	require.NoError(t, err)
	assert.Equal(t, manifest.RefineOK, summary.Refinement)

	refined, err := os.ReadFile(filepath.Join(dir, "faq_en_es.csv"))
	require.NoError(t, err)
	assert.Equal(t, "question_en,answer_en,question_es,answer_es\nWhen does school end?,3:15,¿Cuándo termina la escuela?,A las 3:15\n", string(refined))
	assert.Equal(t, 1, readManifest(t, dir).Refinement.Rows)
}

func TestRunRefinementFailureKeepsHeuristicCSV(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := models.CrawlConfig{SeedURL: srv.URL + "/faq", MaxPages: 1, OutputDir: dir, WithOpenAI: true}

	ref := refiner.New(llm.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return "I could not find any questions.", nil
	}), 0)

	summary, err := Run(context.Background(), cfg, quietLogger(), ref)
	require.NoError(t, err)
	assert.Equal(t, manifest.RefineFailed, summary.Refinement)

	_, err = os.Stat(filepath.Join(dir, "faq_candidates.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "faq_en_es.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRefinementWithoutKeyIsSkipped(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := models.CrawlConfig{SeedURL: srv.URL + "/faq", MaxPages: 1, OutputDir: dir, WithOpenAI: true}

	summary, err := Run(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, manifest.RefineSkipped, summary.Refinement)
}

func TestRunEmptyCrawlStillWritesManifest(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfg := models.CrawlConfig{SeedURL: srv.URL + "/missing", MaxPages: 3, OutputDir: dir}

	summary, err := Run(context.Background(), cfg, quietLogger(), nil)
	assert.ErrorIs(t, err, crawler.ErrEmptyCrawl)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Pages)

	m := readManifest(t, dir)
	assert.Zero(t, m.Counts.Pages)
	require.Len(t, m.Skipped, 1)
	assert.Equal(t, string(crawler.OutcomeFetch), m.Skipped[0].Reason)
}

func TestRunRemovesRefinedCSVFromEarlierRun(t *testing.T) {
	srv := newSite(t)

	tests := []struct {
		name string
		cfg  func(dir string) models.CrawlConfig
		ref  *refiner.Refiner
		want string
	}{
		{
			name: "refinement disabled",
			cfg: func(dir string) models.CrawlConfig {
				return models.CrawlConfig{SeedURL: srv.URL + "/faq", MaxPages: 1, OutputDir: dir}
			},
			want: manifest.RefineDisabled,
		},
		{
			name: "refinement failed",
			cfg: func(dir string) models.CrawlConfig {
				return models.CrawlConfig{SeedURL: srv.URL + "/faq", MaxPages: 1, OutputDir: dir, WithOpenAI: true}
			},
			ref: refiner.New(llm.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
				return "", fmt.Errorf("upstream down")
			}), 0),
			want: manifest.RefineFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			stale := filepath.Join(dir, "faq_en_es.csv")
			require.NoError(t, os.WriteFile(stale, []byte("question_en,answer_en,question_es,answer_es\nOld?,Old,Viejo?,Viejo\n"), 0644))

			summary, err := Run(context.Background(), tt.cfg(dir), quietLogger(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, summary.Refinement)
			assert.NotContains(t, summary.Artifacts, "refined")

			_, err = os.Stat(stale)
			assert.True(t, os.IsNotExist(err))
		})
	}
}
