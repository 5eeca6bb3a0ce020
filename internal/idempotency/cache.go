// Package idempotency replays responses for requests that repeat an
// Idempotency-Key header.
package idempotency

import (
	"net/http"
	"sync"
	"time"
)

// Response is a captured HTTP response.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	CreatedAt  time.Time
}

// Cache is a TTL-bounded, size-limited in-memory store of responses.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Response
	ttl        time.Duration
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once

	now func() time.Time
}

// New creates a Cache that expires entries after ttl and evicts the oldest
// entry beyond maxEntries. A background goroutine prunes expired entries
// every ttl/2 until Stop is called.
func New(ttl time.Duration, maxEntries int) *Cache {
	c := &Cache{
		entries:    make(map[string]*Response),
		ttl:        ttl,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	go c.cleanupLoop()
	return c
}

// Get returns a live entry.
func (c *Cache) Get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

// Set stores a response, evicting the oldest entry when full.
func (c *Cache) Set(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	resp.CreatedAt = c.now()
	c.entries[key] = &resp
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.prune()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.CreatedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// evictOldest removes the entry with the earliest CreatedAt. Caller must hold c.mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey = k
			oldest = e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
