// Package ratelimit, ws event'leri için in-memory rate limiter'lar içerir.
//
//   - JoinRateLimiter: IP bazlı, join denemelerini sınırlar (allow-list'e
//     karşı kullanıcı adı tahminini yavaşlatır).
//   - MessageRateLimiter: kullanıcı bazlı, new_message spam koruması.
//
// Tek process deploy edildiği için state bellekte tutulur. Paket hiçbir
// proje içi pakete bağımlı değildir.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// bucket, bir anahtar için sabit pencere sayacı.
type bucket struct {
	count       int
	windowStart time.Time
}

// JoinRateLimiter, window başına en fazla maxAttempts join denemesine izin verir.
//
//	limiter := NewJoinRateLimiter(10, time.Minute)
//	if !limiter.Allow(ip) { ... rate_limited ... }
//	// başarılı join'de:
//	limiter.Reset(ip)
type JoinRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewJoinRateLimiter, limiter'ı oluşturur ve temizleme goroutine'ini başlatır.
// Close ile durdurulmalı.
func NewJoinRateLimiter(maxAttempts int, window time.Duration) *JoinRateLimiter {
	rl := &JoinRateLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go runCleanup(time.Minute, rl.stop, rl.cleanup)
	return rl
}

// Allow, her çağrıda sayacı artırır; limit aşıldıysa false döner.
func (rl *JoinRateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) > rl.window {
		rl.buckets[key] = &bucket{count: 1, windowStart: now}
		return true
	}

	b.count++
	return b.count <= rl.maxAttempts
}

// Reset, başarılı join sonrası sayacı sıfırlar.
func (rl *JoinRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// RetryAfterSeconds, pencerenin kapanmasına kalan süre (yukarı yuvarlanmış).
func (rl *JoinRateLimiter) RetryAfterSeconds(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return 0
	}
	return ceilSeconds(rl.window - rl.now().Sub(b.windowStart))
}

// Close, temizleme goroutine'ini durdurur.
func (rl *JoinRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *JoinRateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window {
			delete(rl.buckets, key)
		}
	}
}

// RemoteIP, request'in client IP'sini döner.
// Router'daki RealIP middleware X-Forwarded-For / X-Real-IP'yi zaten
// RemoteAddr'a yazmış olur; burada sadece port ayrılır.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func runCleanup(every time.Duration, stop <-chan struct{}, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-stop:
			return
		}
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Seconds()) + 1
}
