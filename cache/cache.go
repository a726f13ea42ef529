// Package cache is a process-wide response cache with per-entry expiry and
// stale-fallback-on-error semantics. Instances are constructed explicitly and
// injected, never reached through package globals, so tests can run against
// isolated caches.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/evdnx/golog"
)

// Producer fetches a fresh value for a key, typically one guarded network
// attempt. Producers must be safe to invoke more than once.
type Producer func(ctx context.Context) ([]byte, error)

// Options configures one GetOrFetch call.
type Options struct {
	// TTL is how long a freshly stored entry stays valid. Zero is a sentinel
	// meaning "never cache": the producer always runs and nothing is stored.
	TTL time.Duration
	// ForceRefresh skips the freshness check and re-runs the producer even
	// when a valid entry exists.
	ForceRefresh bool
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache maps string keys to byte payloads with lazy read-time expiry. Expired
// entries are kept around until overwritten so they can serve as a stale
// fallback when a refresh fails.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	now    func() time.Time
	logger *golog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithGologLogger attaches a logger used to report stale fallbacks.
func WithGologLogger(l *golog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides the time source. Tests use this to expire entries
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached value for key when a fresh entry exists and
// ForceRefresh is off; otherwise it runs producer. A successful produce is
// stored with expiry now+TTL. A failed produce falls back to the previous
// entry — even an expired one — and only propagates the error when no prior
// entry exists.
//
// Two concurrent misses for the same key each run their own producer; the
// later write wins. Producers are idempotent reads, so this is an accepted
// inefficiency rather than a correctness problem.
func (c *Cache) GetOrFetch(ctx context.Context, key string, producer Producer, opts Options) ([]byte, error) {
	if opts.TTL == 0 {
		return producer(ctx)
	}

	if !opts.ForceRefresh {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Before(e.expiresAt) {
			return e.data, nil
		}
	}

	data, err := producer(ctx)
	if err != nil {
		c.mu.RLock()
		stale, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			c.logWarn("serving stale cache entry after fetch failure",
				golog.String("key", key),
				golog.String("error", err.Error()))
			return stale.data, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: c.now().Add(opts.TTL)}
	c.mu.Unlock()
	return data, nil
}

// Invalidate removes every entry whose key contains pattern as a substring
// and returns how many were removed.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if containsPattern(k, pattern) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// ClearAll empties the cache unconditionally.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) logWarn(msg string, fields ...golog.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}

func containsPattern(key, pattern string) bool {
	return pattern == "" || strings.Contains(key, pattern)
}
