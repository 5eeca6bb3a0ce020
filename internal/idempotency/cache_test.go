package idempotency

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func newTestCache(ttl time.Duration, max int) (*Cache, *time.Time) {
	c := New(ttl, max)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheSetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Stop()

	c.Set("k1", Response{Body: []byte("body1"), StatusCode: http.StatusCreated, Header: http.Header{"Content-Type": {"application/json"}}})

	e, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit for k1")
	}
	if string(e.Body) != "body1" || e.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected header: %v", e.Header)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, now := newTestCache(time.Minute, 10)
	defer c.Stop()

	c.Set("k", Response{StatusCode: http.StatusOK})
	*now = now.Add(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live")
	}
	*now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed on read, len=%d", c.Len())
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c, now := newTestCache(time.Hour, 3)
	defer c.Stop()

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), Response{StatusCode: http.StatusOK})
		*now = now.Add(time.Second)
	}
	c.Set("k3", Response{StatusCode: http.StatusOK})

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s should survive eviction", k)
		}
	}
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(time.Hour, 2)
	defer c.Stop()

	c.Set("a", Response{Body: []byte("1")})
	c.Set("b", Response{Body: []byte("2")})
	c.Set("a", Response{Body: []byte("3")})

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	e, _ := c.Get("a")
	if string(e.Body) != "3" {
		t.Fatalf("body = %q, want overwritten value", e.Body)
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("overwrite must not evict other keys")
	}
}

func TestCachePrune(t *testing.T) {
	c, now := newTestCache(time.Minute, 10)
	defer c.Stop()

	c.Set("old", Response{})
	*now = now.Add(90 * time.Second)
	c.Set("fresh", Response{})

	c.prune()
	if c.Len() != 1 {
		t.Fatalf("len after prune = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry pruned")
	}
}

func TestCacheStopTwice(t *testing.T) {
	c := New(time.Minute, 1)
	c.Stop()
	c.Stop()
}
