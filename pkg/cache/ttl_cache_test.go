package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string, int](10*time.Second, time.Hour)
	defer c.Close()
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	now = now.Add(10 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should be expired at exactly ttl")
	}
	if c.Len() != 1 {
		t.Fatal("expired entry is only removed by eviction")
	}
	c.evictExpired()
	if c.Len() != 0 {
		t.Fatal("eviction should remove the entry")
	}
}

func TestTTLCacheSetIfAbsent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string, bool](time.Minute, time.Hour)
	defer c.Close()
	c.now = func() time.Time { return now }

	if !c.SetIfAbsent("chat-1", true) {
		t.Fatal("first set should win")
	}
	if c.SetIfAbsent("chat-1", true) {
		t.Fatal("second set inside ttl should lose")
	}

	now = now.Add(time.Minute)
	if !c.SetIfAbsent("chat-1", true) {
		t.Fatal("set after expiry should win")
	}

	c.Delete("chat-1")
	if !c.SetIfAbsent("chat-1", true) {
		t.Fatal("set after delete should win")
	}
	c.Close()
	c.Close()
}
