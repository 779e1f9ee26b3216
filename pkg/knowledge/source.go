package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/storage"
)

var ErrUnsupportedScheme = errors.New("unsupported knowledge source scheme")

// CacheBustParam is appended to http(s) sources so intermediaries (Google
// Sheets "publish to web", CDNs) hand back a fresh copy.
const CacheBustParam = "_ts"

const maxSourceBytes = 20 << 20

// CleanSource trims whitespace and surrounding quotes, which tend to survive
// copy-paste into .env files.
func CleanSource(source string) string {
	return strings.Trim(strings.TrimSpace(source), `"'`)
}

// ReadSource fetches the raw CSV bytes from an http(s) URL, a file:// URL or
// a bare filesystem path. Invalid UTF-8 is replaced rather than rejected.
func ReadSource(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	source = CleanSource(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedScheme)
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || strings.EqualFold(u.Scheme, "file") {
		return readLocal(source)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return readRemote(ctx, client, u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Load reads and parses a knowledge source in one step.
func Load(ctx context.Context, client *http.Client, source string) (*Dataset, error) {
	data, err := ReadSource(ctx, client, source)
	if err != nil {
		return nil, err
	}
	return ParseCSV(bytes.NewReader(data))
}

func readRemote(ctx context.Context, client *http.Client, u *url.URL) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: models.DefaultSourceTimeout}
	}

	busted := *u
	q := busted.Query()
	q.Set(CacheBustParam, strconv.FormatInt(time.Now().UnixNano(), 10))
	busted.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, busted.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch knowledge source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("failed to fetch knowledge source: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge source: %w", err)
	}
	return toValidUTF8(body), nil
}

func readLocal(source string) ([]byte, error) {
	path, err := storage.ResolvePath(source)
	if err != nil {
		return nil, err
	}
	s := &storage.Storage{}
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return toValidUTF8(data), nil
}

func toValidUTF8(b []byte) []byte {
	return bytes.ToValidUTF8(b, []byte("�"))
}
