package cache

import (
	"reflect"
	"testing"
	"time"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Errorf("Keys() = %v, want [c a]", got)
	}
}

func TestLRUCacheSetMovesToFront(t *testing.T) {
	c := NewLRUCache[string](3, 0)
	c.Set("x", "1")
	c.Set("y", "2")
	c.Set("x", "3")

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Keys() = %v, want [x y]", got)
	}
	if v, _ := c.Get("x"); v != "3" {
		t.Errorf("Get(x) = %q, want 3", v)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	c.Set("b", 3)
	now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Keys() = %v, want [b]", got)
	}

	now = now.Add(time.Hour)
	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after sweep, want 0", c.Size())
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Stop()
	m.Stop()

	m = NewManager()
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
