package cache

import (
	"testing"
	"time"
)

var (
	_ Cache[int] = (*LRUCache[int])(nil)
	_ Cache[int] = (*RedisCache[int])(nil)
)

func TestLRUCacheGetSetDelete(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Fatalf("overwrite not applied, got %q", v)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after delete")
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.Entries != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute).WithClock(func() time.Time { return now })
	c.Set("a", 1)
	c.Set("b", 2)

	now = now.Add(30 * time.Second)
	c.Set("c", 3)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("entry expired too early")
	}

	now = now.Add(45 * time.Second)
	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("expected 2 expired entries, removed %d", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("fresh entry should survive cleanup")
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second).WithClock(func() time.Time { return now })
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	now = now.Add(2 * time.Second)
	if cleaned := m.CleanNow(); cleaned != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", cleaned)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop() // second stop is a no-op
}

func TestRedisCacheUnreachableDegradesToMiss(t *testing.T) {
	c := NewRedisCache[int]("127.0.0.1:1", "loans:test:", time.Minute)
	defer c.Close()

	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("unreachable redis must report a miss")
	}
	c.Delete("a")
	if c.Size() != 0 {
		t.Fatalf("unreachable redis must report size 0")
	}
}
