package storage

import (
	"testing"
	"time"
)

func TestCacheHitAndExpiry(t *testing.T) {
	c := NewCache(80 * time.Millisecond)
	defer c.Close()
	c.Set("http://a.example/list", "udp://t.example:1/announce\n")

	body, ok := c.Get("http://a.example/list")
	if !ok || body != "udp://t.example:1/announce\n" {
		t.Fatalf("expected fresh hit, got ok=%v body=%q", ok, body)
	}
	if _, ok := c.Get("http://missing.example/list"); ok {
		t.Fatalf("unexpected hit for absent key")
	}

	time.Sleep(120 * time.Millisecond)
	if _, ok := c.Get("http://a.example/list"); ok {
		t.Fatalf("expected entry to expire after ttl")
	}
}

func TestCacheFlush(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "3") // overwrite, not a new entry
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if n := c.Flush(); n != 2 {
		t.Fatalf("flush reported %d evictions, want 2", n)
	}
	if c.Len() != 0 {
		t.Fatalf("cache not empty after flush")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("hit after flush")
	}
}

func TestCacheBackgroundSweep(t *testing.T) {
	c := NewCache(60 * time.Millisecond)
	defer c.Close()
	c.Set("gone", "x")
	time.Sleep(200 * time.Millisecond)
	// The sweeper, not a Get, should have culled the entry.
	if c.Len() != 0 {
		t.Fatalf("expected sweeper to remove expired entry, len=%d", c.Len())
	}
}

func TestCacheCloseStopsSweeper(t *testing.T) {
	c := NewCache(40 * time.Millisecond)
	c.Set("kept", "x")
	c.Close()
	c.Close() // idempotent
	time.Sleep(150 * time.Millisecond)
	// With the sweeper stopped, the stale entry survives until a read
	// expires it lazily.
	if c.Len() != 1 {
		t.Fatalf("sweeper still running after Close, len=%d", c.Len())
	}
	if _, ok := c.Get("kept"); ok {
		t.Fatalf("expired entry must still be refused on read")
	}
	if c.Len() != 0 {
		t.Fatalf("lazy expiry did not drop the entry")
	}
}
