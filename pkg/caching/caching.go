package caching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/knowledge"
	"github.com/dtnitsch/school-kb/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Snapshot is the result of one load. It is never mutated after publication.
type Snapshot struct {
	Entries  map[models.Language][]models.KnowledgeEntry
	LoadedAt time.Time
	Source   string
	Stale    bool
}

// Count returns the number of entries for lang.
func (s *Snapshot) Count(lang models.Language) int {
	if s == nil {
		return 0
	}
	return len(s.Entries[lang])
}

// Status is a point-in-time view for the admin endpoints.
type Status struct {
	Source    string                  `json:"source" yaml:"source"`
	Counts    map[models.Language]int `json:"counts" yaml:"counts"`
	LoadedAt  time.Time               `json:"loaded_at" yaml:"loaded_at"`
	TTL       time.Duration           `json:"ttl" yaml:"ttl"`
	Stale     bool                    `json:"stale" yaml:"stale"`
	LastError string                  `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Cache holds the knowledge snapshot loaded from a CSV source and reloads it
// when the TTL has elapsed. Readers always get a complete snapshot.
type Cache struct {
	source string
	ttl    time.Duration
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	retryInterval time.Duration

	mu      sync.Mutex
	lastErr error
	retryAt time.Time
}

type Option func(*Cache)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryInterval sets how long a failed reload is remembered before
// Context tries the source again. It never exceeds the TTL.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Cache) { c.retryInterval = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache for source. Nothing is loaded until the
// first Context or Load call. A zero ttl reloads on every Context call; a
// negative one means the default.
func NewCache(source string, ttl time.Duration, opts ...Option) *Cache {
	if ttl < 0 {
		ttl = models.DefaultCacheTTL
	}
	c := &Cache{
		source:        knowledge.CleanSource(source),
		ttl:           ttl,
		client:        &http.Client{Timeout: models.DefaultSourceTimeout},
		logger:        slog.Default(),
		now:           time.Now,
		retryInterval: models.DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retryInterval = min(max(c.retryInterval, 0), c.ttl)
	return c
}

// Source returns the configured knowledge source.
func (c *Cache) Source() string {
	return c.source
}

// Load reloads the source now. Concurrent callers share one reload, which is
// not tied to any single caller's ctx: a caller whose ctx ends stops waiting
// and gets the current snapshot, while the reload finishes for the others.
// On failure the previous snapshot stays in place and the error is returned.
func (c *Cache) Load(ctx context.Context) (*Snapshot, error) {
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("load", func() (interface{}, error) {
		return c.load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return c.current.Load(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return c.current.Load(), res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.KnowledgeLoadDuration.Observe(time.Since(start).Seconds())
	}()

	if c.source == "" {
		snap := &Snapshot{Entries: map[models.Language][]models.KnowledgeEntry{}, LoadedAt: c.now()}
		c.publish(snap, nil)
		metrics.KnowledgeLoads.WithLabelValues("unconfigured").Inc()
		return snap, nil
	}

	ds, err := knowledge.Load(ctx, c.client, c.source)
	if err != nil {
		c.fail(err)
		result := "error"
		if errors.Is(err, knowledge.ErrEmptySource) {
			result = "empty_source"
		}
		metrics.KnowledgeLoads.WithLabelValues(result).Inc()
		c.logger.Error("Failed to load knowledge source", "source", c.source, "error", err)
		return nil, fmt.Errorf("failed to load knowledge source: %w", err)
	}

	snap := &Snapshot{Entries: ds.Entries, LoadedAt: c.now(), Source: c.source}
	c.publish(snap, nil)
	metrics.KnowledgeLoads.WithLabelValues("ok").Inc()
	c.logger.Info("Loaded knowledge source",
		"source", c.source,
		"en", snap.Count(models.English),
		"es", snap.Count(models.Spanish),
		"ja", snap.Count(models.Japanese),
		"malformed_rows", ds.MalformedRows,
	)
	return snap, nil
}

func (c *Cache) publish(snap *Snapshot, err error) {
	c.current.Store(snap)
	c.setErr(err)
	for _, lang := range models.Languages {
		metrics.KnowledgeEntries.WithLabelValues(string(lang)).Set(float64(snap.Count(lang)))
	}
}

func (c *Cache) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.retryAt = time.Time{}
	c.mu.Unlock()
}

// fail records err and holds off further Context reloads for retryInterval.
func (c *Cache) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.retryAt = c.now().Add(c.retryInterval)
	c.mu.Unlock()
}

func (c *Cache) backingOff() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.retryAt)
}

// Context returns the current snapshot, reloading first when nothing has been
// loaded, the TTL has elapsed, or the snapshot was flushed. A failed reload
// is logged and the last good snapshot (possibly empty) is returned; further
// reloads wait out the retry interval.
func (c *Cache) Context(ctx context.Context) *Snapshot {
	snap := c.current.Load()
	if snap != nil && !snap.Stale && c.now().Sub(snap.LoadedAt) < c.ttl {
		return snap
	}
	if !c.backingOff() {
		if fresh, err := c.Load(ctx); err == nil {
			return fresh
		}
		snap = c.current.Load()
	}
	if snap == nil {
		return &Snapshot{Entries: map[models.Language][]models.KnowledgeEntry{}, Source: c.source}
	}
	return snap
}

// Flush marks the current snapshot stale so the next Context call reloads,
// even while backing off from a failed reload. Entries stay available until
// a reload succeeds.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.retryAt = time.Time{}
	c.mu.Unlock()
	for {
		snap := c.current.Load()
		if snap == nil || snap.Stale {
			return
		}
		flushed := *snap
		flushed.Stale = true
		if c.current.CompareAndSwap(snap, &flushed) {
			c.logger.Info("Flushed knowledge cache", "source", c.source)
			return
		}
	}
}

// Status reports what the cache currently holds without triggering a load.
func (c *Cache) Status() Status {
	st := Status{Source: c.source, TTL: c.ttl, Counts: make(map[models.Language]int, len(models.Languages))}
	snap := c.current.Load()
	for _, lang := range models.Languages {
		st.Counts[lang] = snap.Count(lang)
	}
	if snap != nil {
		st.LoadedAt = snap.LoadedAt
		st.Stale = snap.Stale
	}
	c.mu.Lock()
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()
	return st
}
