package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock, testlerde zamanı elle ilerletmek için.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestJoinRateLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewJoinRateLimiter(2, time.Minute)
	defer rl.Close()
	rl.now = clock.now

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third attempt inside the window should fail")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other keys are independent")
	}
	if got := rl.RetryAfterSeconds("1.2.3.4"); got != 61 {
		t.Fatalf("RetryAfterSeconds = %d, want 61", got)
	}

	clock.advance(time.Minute + time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("a new window should reset the counter")
	}

	rl.Allow("1.2.3.4")
	rl.Reset("1.2.3.4")
	if !rl.Allow("1.2.3.4") {
		t.Fatal("Reset should clear the bucket")
	}
}

func TestMessageRateLimiterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewMessageRateLimiter(3, 5*time.Second, 15*time.Second)
	defer rl.Close()
	rl.now = clock.now

	for i := 0; i < 3; i++ {
		if !rl.Allow("Azz") {
			t.Fatalf("message %d should pass", i+1)
		}
	}
	if rl.Allow("Azz") {
		t.Fatal("fourth message should start the cooldown")
	}
	if got := rl.CooldownSeconds("Azz"); got != 16 {
		t.Fatalf("CooldownSeconds = %d, want 16", got)
	}

	// Pencere bitse bile cooldown sürüyor.
	clock.advance(10 * time.Second)
	if rl.Allow("Azz") {
		t.Fatal("still cooling down")
	}

	clock.advance(6 * time.Second)
	if !rl.Allow("Azz") {
		t.Fatal("cooldown should be over")
	}
	if rl.CooldownSeconds("Azz") != 0 {
		t.Fatal("cooldown should be cleared")
	}
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewMessageRateLimiter(1, time.Second, time.Second)
	defer rl.Close()
	rl.now = clock.now

	rl.Allow("Queen")
	clock.advance(3 * time.Second)
	rl.cleanup()
	if len(rl.buckets) != 0 {
		t.Fatalf("idle bucket not removed: %d left", len(rl.buckets))
	}
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	if got := RemoteIP(r); got != "10.0.0.7" {
		t.Fatalf("RemoteIP = %q", got)
	}
	r.RemoteAddr = "10.0.0.8"
	if got := RemoteIP(r); got != "10.0.0.8" {
		t.Fatalf("RemoteIP without port = %q", got)
	}
}
