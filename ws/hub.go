package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventPublisher, router'ın event göndermek için kullandığı interface.
// Router Hub'ın concrete struct'ına değil buna bağımlıdır; testte
// kayıt tutan bir fake ile değiştirilir.
//
// "Bound" bağlantı: join ile bir kullanıcıya bağlanmış bağlantı.
// Broadcast metodları sadece bound bağlantılara gider.
type EventPublisher interface {
	Bind(connID, username string)
	SendTo(connID string, event Event)
	BroadcastToAll(event Event)
	BroadcastToAllExcept(excludeConnID string, event Event)
	BroadcastToEveryConnection(event Event)
}

// EventHandler, bir client event'ini işler. Aynı bağlantının event'leri
// sırayla (ReadPump goroutine'inde) çağrılır.
type EventHandler func(connID, remoteIP string, event InboundEvent)

// DisconnectHandler, bağlantı Hub'dan çıkarıldıktan sonra çağrılır.
type DisconnectHandler func(connID string)

// Hub, tüm WebSocket bağlantılarını connID → Client olarak tutar.
//
// register/unregister channel'ları Run goroutine'inde işlenir; broadcast
// metodları doğrudan RLock ile client'ların send buffer'ına yazar.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	onEvent      EventHandler
	onDisconnect DisconnectHandler

	log *zap.Logger
}

// NewHub, yeni bir Hub oluşturur. Run çağrılmadan bağlantı kabul edilmez.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// OnClientEvent, gelen event callback'ini ayarlar. Run'dan önce çağrılmalı.
func (h *Hub) OnClientEvent(fn EventHandler) { h.onEvent = fn }

// OnClientDisconnect, kopma callback'ini ayarlar. Run'dan önce çağrılmalı.
func (h *Hub) OnClientDisconnect(fn DisconnectHandler) { h.onDisconnect = fn }

// Run, ctx iptal edilene veya Shutdown çağrılana kadar register/unregister işler.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			if h.removeClient(client) && h.onDisconnect != nil {
				// removeClient lock'u bıraktıktan sonra: router tekrar Hub'a yazabilir.
				h.onDisconnect(client.id)
			}
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	h.log.Debug("client connected",
		zap.String("conn_id", client.id),
		zap.String("remote_ip", client.remoteIP),
		zap.Int("connections", len(h.clients)),
	)
}

// removeClient, client'ı çıkarır ve send channel'ını kapatır. Client zaten
// çıkarılmışsa false döner; böylece disconnect callback'i bir kez çalışır.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.id]; !ok || current != client {
		return false
	}
	delete(h.clients, client.id)
	close(client.send)

	h.log.Debug("client disconnected",
		zap.String("conn_id", client.id),
		zap.String("username", client.username),
		zap.Int("connections", len(h.clients)),
	)
	return true
}

// requestUnregister, Run kapandıysa bloklamadan vazgeçer.
func (h *Hub) requestUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Bind, bağlantıyı bir kullanıcıya bağlar. Bağlantı yoksa no-op.
func (h *Hub) Bind(connID, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[connID]; ok {
		c.username = username
	}
}

// SendTo, tek bir bağlantıya event gönderir (bound olması gerekmez).
func (h *Hub) SendTo(connID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.clients[connID]; ok {
		h.deliver(c, event)
	}
}

// BroadcastToAll, tüm bound bağlantılara event gönderir.
func (h *Hub) BroadcastToAll(event Event) {
	h.broadcast(event, func(c *Client) bool { return c.username != "" })
}

// BroadcastToAllExcept, gönderen bağlantı hariç tüm bound bağlantılara gönderir.
func (h *Hub) BroadcastToAllExcept(excludeConnID string, event Event) {
	h.broadcast(event, func(c *Client) bool { return c.username != "" && c.id != excludeConnID })
}

// BroadcastToEveryConnection, join olmamış bağlantılar dahil herkese gönderir.
// Sadece server_shutdown için kullanılır.
func (h *Hub) BroadcastToEveryConnection(event Event) {
	h.broadcast(event, func(*Client) bool { return true })
}

func (h *Hub) broadcast(event Event, match func(*Client) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if match(c) {
			h.deliver(c, event)
		}
	}
}

// deliver, mu.RLock altında çağrılır. Buffer doluysa client yavaştır;
// unregister ayrı goroutine'de istenir (RLock tutulurken Run'ı bekleyemeyiz).
func (h *Hub) deliver(c *Client, event Event) {
	select {
	case c.send <- event:
	default:
		h.log.Warn("send buffer full, dropping connection", zap.String("conn_id", c.id))
		go h.requestUnregister(c)
	}
}

// ConnectionCount, bağlı (bound olsun olmasın) bağlantı sayısı.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown, Run'ı durdurur ve tüm bağlantıların send channel'ını kapatır.
// WritePump'lar close frame gönderip çıkar. Birden fazla çağrı güvenlidir.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for _, c := range h.clients {
			close(c.send)
		}
		n := len(h.clients)
		h.clients = make(map[string]*Client)
		h.log.Info("hub shut down", zap.Int("closed_connections", n))
	})
}
