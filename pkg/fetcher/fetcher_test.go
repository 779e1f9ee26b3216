package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, robots)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><p>%s</p><p>%s</p></body></html>", r.URL.Path, r.UserAgent())
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHTTP(t *testing.T) {
	srv := newSite(t, "")
	f := NewFetcher(WithUserAgent("TestBot/1.0"))

	resp, err := f.Fetch(context.Background(), srv.URL+"/about")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsHTML())
	assert.Contains(t, string(resp.Body), "/about")
	assert.Contains(t, string(resp.Body), "TestBot/1.0")
}

func TestFetchNonHTMLContentType(t *testing.T) {
	srv := newSite(t, "")
	f := NewFetcher()

	resp, err := f.Fetch(context.Background(), srv.URL+"/file.pdf")
	require.NoError(t, err)
	assert.False(t, resp.IsHTML())
}

func TestFetchErrorStatus(t *testing.T) {
	srv := newSite(t, "")
	f := NewFetcher()

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchUnreachable(t *testing.T) {
	srv := newSite(t, "")
	addr := srv.URL
	srv.Close()

	f := NewFetcher(IgnoreRobots(), WithTimeout(time.Second))
	_, err := f.Fetch(context.Background(), addr+"/")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchUnsupportedScheme(t *testing.T) {
	f := NewFetcher()
	for _, raw := range []string{"ftp://example.com/file", "mailto:office@example.org"} {
		_, err := f.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, ErrUnsupportedScheme, raw)
	}
}

func TestFetchRobotsDisallow(t *testing.T) {
	srv := newSite(t, "User-agent: *\nDisallow: /private\n")

	tests := []struct {
		name    string
		opts    []Option
		path    string
		wantErr error
	}{
		{name: "allowed path", path: "/public"},
		{name: "disallowed path", path: "/private/page", wantErr: ErrNotAllowed},
		{name: "ignore robots", opts: []Option{IgnoreRobots()}, path: "/private/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(tt.opts...)
			_, err := f.Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRobotsFetchedOncePerOrigin(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			fmt.Fprint(w, "User-agent: *\nCrawl-delay: 2\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>ok</p>")
	}))
	defer srv.Close()

	f := NewFetcher()
	for _, p := range []string{"/a", "/b", "/c"} {
		_, err := f.Fetch(context.Background(), srv.URL+p)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	u, err := url.Parse(srv.URL + "/a")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, f.Robots().CrawlDelay(context.Background(), u))
}

func TestRobotsServerErrorIsPermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>ok</p>")
	}))
	defer srv.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), srv.URL+"/anything")
	assert.NoError(t, err)
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>hello</p>"), 0644))

	f := NewFetcher()
	for _, raw := range []string{path, "file://" + path} {
		resp, err := f.Fetch(context.Background(), raw)
		require.NoError(t, err, raw)
		assert.True(t, resp.IsHTML(), raw)
		assert.Equal(t, "<p>hello</p>", string(resp.Body))
	}

	_, err := f.Fetch(context.Background(), filepath.Join(dir, "nope.html"))
	assert.ErrorIs(t, err, ErrNetwork)
}
