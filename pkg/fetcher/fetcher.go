package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/storage"
)

var (
	ErrNotAllowed        = errors.New("blocked by robots.txt")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrNetwork           = errors.New("network error")
)

// maxBodyBytes caps a single page download.
const maxBodyBytes = 10 << 20

// Response is the raw result of a single fetch.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	robots    *RobotsPolicy
	storage   *storage.Storage
}

type Option func(*Fetcher)

// WithClient replaces the default HTTP client. Mostly useful in tests.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// IgnoreRobots disables the robots.txt check for network fetches.
func IgnoreRobots() Option {
	return func(f *Fetcher) { f.robots = nil }
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: models.DefaultFetchTimeout},
		userAgent: models.DefaultUserAgent,
		storage:   &storage.Storage{},
	}
	f.robots = &RobotsPolicy{}
	for _, opt := range opts {
		opt(f)
	}
	if f.robots != nil {
		f.robots = NewRobotsPolicy(f.client, f.userAgent)
	}
	return f
}

// Robots returns the active robots policy, or nil when robots checks are bypassed.
func (f *Fetcher) Robots() *RobotsPolicy {
	return f.robots
}

// Fetch resolves rawURL by scheme: http(s) goes over the network after the
// robots check, file:// and bare paths are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return f.readLocal(rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if f.robots != nil && !f.robots.Allowed(ctx, u) {
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, rawURL)
		}
		return f.get(ctx, u.String())
	case "file":
		return f.readLocal(rawURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) get(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to make HTTP request: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetwork, err)
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) readLocal(raw string) (*Response, error) {
	path, err := storage.ResolvePath(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	body, err := f.storage.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &Response{
		URL:         raw,
		StatusCode:  http.StatusOK,
		ContentType: contentType,
		Body:        body,
	}, nil
}
