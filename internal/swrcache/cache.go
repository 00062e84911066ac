// Package swrcache is a TTL cache that serves the last-known-good value,
// marked stale, when a refresh fails. Concurrent misses for the same key
// coalesce into one fetch. Entries live in memory and are optionally
// mirrored to a directory so short-lived processes can share them.
package swrcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultFreshTTL = 5 * time.Minute
	refreshTimeout  = 30 * time.Second
)

// FetchFunc loads a fresh value.
type FetchFunc[T any] func(context.Context) (T, error)

// Cache provides TTL caching with stale fallback and singleflight refresh.
type Cache[T any] struct {
	dir      string
	freshTTL time.Duration
	maxStale time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[T]
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	dir string
	now func() time.Time
}

// WithDir mirrors entries to JSON files under dir.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithClock overrides the time source. Intended for testing.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a cache with the given TTLs. A non-positive freshTTL uses the
// default of five minutes; a non-positive maxStale serves stale entries
// regardless of age.
func New[T any](freshTTL, maxStale time.Duration, opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if freshTTL <= 0 {
		freshTTL = defaultFreshTTL
	}
	return &Cache[T]{
		dir:      o.dir,
		freshTTL: freshTTL,
		maxStale: maxStale,
		now:      o.now,
		entries:  make(map[string]Entry[T]),
	}
}

// GetOrFetch returns the cached value for key while it is within the TTL.
// Past the TTL it fetches; if the fetch fails and the last-known-good
// entry is within maxStale, that entry is returned marked stale and the
// error is swallowed. Otherwise the fetch error is returned.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[T]) (Result[T], error) {
	entry, ok := c.lookup(key)
	if ok && c.fresh(entry) {
		return Result[T]{Data: entry.Data, FetchedAt: entry.FetchedAt, Hit: true}, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Another caller may have refreshed while we waited for the slot.
		if e, ok := c.lookup(key); ok && c.fresh(e) {
			return e, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		data, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		e := Entry[T]{Data: data, FetchedAt: c.now()}
		c.store(key, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		var zero Result[T]
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			e := res.Val.(Entry[T])
			return Result[T]{Data: e.Data, FetchedAt: e.FetchedAt}, nil
		}
		if ok && c.servable(entry) {
			return Result[T]{Data: entry.Data, FetchedAt: entry.FetchedAt, Stale: true}, nil
		}
		var zero Result[T]
		return zero, res.Err
	}
}

// Invalidate removes a single cached entry.
func (c *Cache[T]) Invalidate(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	err := os.Remove(c.pathForKey(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *Cache[T]) fresh(e Entry[T]) bool {
	age := c.now().Sub(e.FetchedAt)
	return !e.FetchedAt.IsZero() && age >= 0 && age <= c.freshTTL
}

func (c *Cache[T]) servable(e Entry[T]) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return c.maxStale <= 0 || c.now().Sub(e.FetchedAt) <= c.maxStale
}

func (c *Cache[T]) lookup(key string) (Entry[T], bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok || c.dir == "" {
		return e, ok
	}

	e, ok, err := readEntry[T](c, key)
	if err != nil || !ok {
		return e, false
	}
	c.mu.Lock()
	if cur, exists := c.entries[key]; !exists || cur.FetchedAt.Before(e.FetchedAt) {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return e, true
}

func (c *Cache[T]) store(key string, e Entry[T]) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	if c.dir != "" {
		// The in-memory entry is authoritative; a failed mirror write only
		// costs the next process a refetch.
		_ = writeEntry(c, key, e)
	}
}

func readEntry[T any](c *Cache[T], key string) (Entry[T], bool, error) {
	var zero Entry[T]
	data, err := os.ReadFile(c.pathForKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, err
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return zero, false, nil
	}
	return entry, true, nil
}

func writeEntry[T any](c *Cache[T], key string, entry Entry[T]) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("swrcache: marshal %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(c.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}

	return os.Rename(name, c.pathForKey(key))
}

func (c *Cache[T]) pathForKey(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

// dirOverride, when non-empty, replaces DefaultDir. Intended for testing.
var dirOverride string

// SetDefaultDir overrides the default cache directory. Intended for testing.
func SetDefaultDir(dir string) { dirOverride = dir }

// ResetDefaultDir clears the override. Intended for testing.
func ResetDefaultDir() { dirOverride = "" }

// DefaultDir returns the per-user cache directory for carbonq.
func DefaultDir() string {
	if dirOverride != "" {
		return dirOverride
	}
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "carbonq", "carbon")
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
