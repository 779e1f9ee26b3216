package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy answers robots.txt questions, fetching each origin's file once.
// An unreadable robots.txt never blocks crawling.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // nil entry = permissive
}

func NewRobotsPolicy(client *http.Client, userAgent string) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the configured user agent may fetch u.
func (p *RobotsPolicy) Allowed(ctx context.Context, u *url.URL) bool {
	data := p.load(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(requestPath(u), p.userAgent)
}

// CrawlDelay returns the Crawl-delay advertised for our agent, or zero.
func (p *RobotsPolicy) CrawlDelay(ctx context.Context, u *url.URL) time.Duration {
	data := p.load(ctx, u)
	if data == nil {
		return 0
	}
	group := data.FindGroup(p.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

func (p *RobotsPolicy) load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.cache[origin]; ok {
		return data
	}

	data := p.fetch(ctx, origin+"/robots.txt")
	p.cache[origin] = data
	return data
}

func (p *RobotsPolicy) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}

func requestPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
