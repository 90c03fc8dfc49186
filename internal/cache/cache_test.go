package cache_test

import (
	"testing"
	"time"

	"github.com/userhub/userhub/internal/cache"
)

func TestCacheSetGet(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("users:all", []byte(`[{"id":"1"}]`))

	v, ok := c.Get("users:all")
	if !ok {
		t.Fatalf("expected a hit")
	}

	got, ok := v.([]byte)
	if !ok {
		t.Fatalf("cached value has wrong type %T", v)
	}

	if string(got) != `[{"id":"1"}]` {
		t.Fatalf("got %q", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := cache.New(time.Minute)

	if _, ok := c.Get("nope"); ok {
		t.Fatalf("expected a miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := cache.New(5 * time.Millisecond)

	c.Set("short", "x")

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatalf("expected the entry to have expired")
	}
}

func TestCacheDelete(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("users:all", "x")
	c.Delete("users:all")

	if _, ok := c.Get("users:all"); ok {
		t.Fatalf("expected the entry to be gone")
	}
}

func TestCacheClear(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected the cache to be empty")
	}

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected the cache to be empty")
	}
}
