package cache

import (
	"testing"
	"time"
)

func TestTTLGetSet(t *testing.T) {
	c := NewTTL[string](time.Minute, 4)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("Get(missing): expected miss")
	}

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a): got=%q ok=%v", v, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[int](time.Minute, 4)
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("Get(a) before expiry: expected hit")
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("a"); ok {
		t.Fatalf("Get(a) after expiry: expected miss")
	}
	if c.Len() != 0 {
		t.Fatalf("Len after lazy eviction: got=%d", c.Len())
	}
}

func TestTTLBound(t *testing.T) {
	c := NewTTL[int](time.Minute, 2)
	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }

	c.Set("a", 1)
	base = base.Add(time.Second)
	c.Set("b", 2)
	base = base.Add(time.Second)
	c.Set("c", 3)

	if c.Len() > 2 {
		t.Fatalf("Len after bound eviction: got=%d want<=2", c.Len())
	}
	// "a" was closest to expiry, so it is the one evicted.
	if _, ok := c.Get("a"); ok {
		t.Fatalf("Get(a): expected eviction of oldest entry")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("Get(c): expected newest entry retained")
	}
}
