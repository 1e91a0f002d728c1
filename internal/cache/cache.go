// Package cache holds parsed documents keyed by identifier and parse
// profile. Concurrent misses for one key coalesce onto a single loader
// execution; entries expire by TTL and are evicted least-recently-used
// once the cache is over capacity.
package cache

import (
	"container/list"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"PmcReader/internal/domain"
	"PmcReader/internal/ports"
)

// Config tunes the in-memory cache.
type Config struct {
	// TTL after which a ready entry is no longer served.
	TTL time.Duration
	// Capacity bounds the number of ready entries; zero means 1000.
	Capacity int
	// NegativeTTL, when positive, remembers a loader failure for that
	// window and serves it to later callers without re-invoking the
	// loader. Zero disables negative caching: the next call retries.
	NegativeTTL time.Duration
}

// DocumentCache is the single-flight TTL/LRU cache. An entry for a key
// is in exactly one of three states: pending (a flight exists), ready
// (an entry exists), or failed (a negative record exists); pending
// transitions to ready or failed exactly once.
type DocumentCache struct {
	cfg    Config
	store  ports.DocumentStore
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	order    *list.List // front = most recently used; values are keys
	flights  map[string]*flight
	failures map[string]*failure
}

type entry struct {
	doc        *domain.Document
	insertedAt time.Time
	elem       *list.Element
}

type flight struct {
	done chan struct{}
	doc  *domain.Document
	err  error
}

type failure struct {
	err error
	at  time.Time
}

var _ ports.DocumentCache = (*DocumentCache)(nil)

// New builds a cache. store may be nil; when set it is consulted
// between a memory miss and the loader, and written after successful
// loads. A nil logger disables diagnostics.
func New(cfg Config, store ports.DocumentStore, logger *slog.Logger) *DocumentCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DocumentCache{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		entries:  map[string]*entry{},
		order:    list.New(),
		flights:  map[string]*flight{},
		failures: map[string]*failure{},
	}
}

// GetOrLoad returns the cached document for key or executes load exactly
// once for all concurrent callers of that key. The load runs detached
// from ctx: a caller abandoning its wait never cancels work other
// waiters share, and the result is still stored for later calls.
func (c *DocumentCache) GetOrLoad(ctx context.Context, key string, load ports.DocumentLoader) (*domain.Document, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		if time.Since(e.insertedAt) < c.cfg.TTL {
			c.order.MoveToFront(e.elem)
			c.mu.Unlock()
			c.logger.Debug("cache hit", "key", key)
			return e.doc, nil
		}
		c.removeLocked(key)
		c.logger.Debug("cache entry expired", "key", key)
	}

	if f, ok := c.failures[key]; ok {
		if c.cfg.NegativeTTL > 0 && time.Since(f.at) < c.cfg.NegativeTTL {
			c.mu.Unlock()
			return nil, &domain.LoadError{Key: key, Err: f.err}
		}
		delete(c.failures, key)
	}

	if fl, ok := c.flights[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("joining in-flight load", "key", key)
		return c.wait(ctx, fl)
	}

	fl := &flight{done: make(chan struct{})}
	c.flights[key] = fl
	c.mu.Unlock()

	go c.runLoad(context.WithoutCancel(ctx), key, fl, load)

	return c.wait(ctx, fl)
}

// Invalidate removes an entry immediately regardless of TTL, along with
// any negative record, and drops it from the persistent store.
func (c *DocumentCache) Invalidate(key string) {
	c.mu.Lock()
	c.removeLocked(key)
	delete(c.failures, key)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(context.Background(), key); err != nil {
			c.logger.Warn("store delete failed", "key", key, "error", err)
		}
	}
}

// Len reports the number of ready entries.
func (c *DocumentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DocumentCache) wait(ctx context.Context, fl *flight) (*domain.Document, error) {
	select {
	case <-fl.done:
		return fl.doc, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *DocumentCache) runLoad(ctx context.Context, key string, fl *flight, load ports.DocumentLoader) {
	doc, err := c.lookupStore(ctx, key)
	fromStore := doc != nil

	if doc == nil {
		doc, err = load(ctx)
	}

	c.mu.Lock()
	delete(c.flights, key)
	if err == nil {
		c.insertLocked(key, doc)
	} else if c.cfg.NegativeTTL > 0 {
		c.failures[key] = &failure{err: err, at: time.Now()}
	}
	c.mu.Unlock()

	if err == nil {
		if !fromStore && c.store != nil {
			if putErr := c.store.Put(ctx, key, doc); putErr != nil {
				c.logger.Warn("store put failed", "key", key, "error", putErr)
			}
		}
		fl.doc = doc
	} else {
		fl.err = &domain.LoadError{Key: key, Err: err}
	}
	close(fl.done)
}

func (c *DocumentCache) lookupStore(ctx context.Context, key string) (*domain.Document, error) {
	if c.store == nil {
		return nil, nil
	}
	doc, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("store lookup failed", "key", key, "error", err)
		return nil, nil
	}
	return doc, nil
}

func (c *DocumentCache) insertLocked(key string, doc *domain.Document) {
	if old, ok := c.entries[key]; ok {
		c.order.Remove(old.elem)
	}
	e := &entry{doc: doc, insertedAt: time.Now()}
	e.elem = c.order.PushFront(key)
	c.entries[key] = e

	for len(c.entries) > c.cfg.Capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(string)
		c.removeLocked(victim)
		c.logger.Debug("evicted least-recently-used entry", "key", victim)
	}
}

func (c *DocumentCache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.order.Remove(e.elem)
		delete(c.entries, key)
	}
}
