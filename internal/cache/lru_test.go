package cache

import (
	"testing"
	"time"
)

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[[]string](4, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("accounts", []string{"Egg", "HSBC"})
	if v, ok := c.Get("accounts"); !ok || len(v) != 2 {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("accounts"); ok {
		t.Fatal("entry should expire after the ttl")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry not removed, size=%d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite: a = %d", v)
	}
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("x", "1")
	c.Set("y", "2")
	if c.Size() != 1 {
		t.Errorf("size is capped at one, got %d", c.Size())
	}

	c.Delete("y")
	if c.Size() != 0 {
		t.Errorf("size after delete = %d", c.Size())
	}

	c = NewLRUCache[string](3, time.Hour)
	c.Set("x", "1")
	c.Set("y", "2")
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("size after purge = %d", c.Size())
	}
	if _, ok := c.Get("x"); ok {
		t.Error("purged entry still returned")
	}
}
