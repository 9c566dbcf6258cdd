// Package cache, generic in-memory TTL cache içerir.
//
// Bildirim dispatcher'ı bunu subscriber başına cooldown için kullanır:
// bir subscriber'a bildirim gittiğinde endpoint TTL süresince cache'te kalır,
// bu sürede gelen yeni mesajlar o subscriber'ı atlar.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache, her kaydın ttl sonra okunamaz hale geldiği thread-safe cache.
//
//	c := cache.New[string, time.Time](30*time.Second, time.Minute)
//	if c.SetIfAbsent(endpoint, time.Now()) { ... gönder ... }
//
// Süresi dolan kayıtlar Get'te görünmez; map'ten fiziksel silme
// cleanupInterval'de bir arka planda yapılır.
type TTLCache[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  map[K]entry[V]
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// New, cache'i oluşturur ve temizleme goroutine'ini başlatır. Close ile durdurulur.
func New[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stop:
				return
			}
		}
	}()

	return c
}

// Get, key varsa ve süresi dolmamışsa (value, true) döner.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set, değeri ttl süresiyle yazar (varsa üzerine).
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// SetIfAbsent, key yoksa (veya süresi dolduysa) yazar ve true döner.
// Canlı bir kayıt varsa hiçbir şey yapmaz ve false döner. Kontrol ve yazma
// tek lock altında olduğu için iki goroutine aynı anda true alamaz.
func (c *TTLCache[K, V]) SetIfAbsent(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		return false
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	return true
}

// Delete, key'i siler.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len, süresi dolmuşlar dahil kayıt sayısı.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close, temizleme goroutine'ini durdurur. Birden fazla çağrı güvenlidir.
func (c *TTLCache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTLCache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
