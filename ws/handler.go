package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/duet/pkg/ratelimit"
)

// Handler, /ws isteklerini WebSocket'e yükseltir.
//
// Kimlik doğrulama bağlantı anında değil, join event'inde yapılır: bağlantı
// Unbound başlar, join başarılı olunca router Hub.Bind ile bağlar.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler, izin verilen origin listesiyle handler oluşturur.
// "*" tüm origin'lere izin verir.
func NewHandler(hub *Hub, allowedOrigins []string, log *zap.Logger) *Handler {
	h := &Handler{hub: hub, log: log.Named("ws")}
	checker := newOriginChecker(allowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if checker.allowed(r) {
				return true
			}
			h.log.Warn("blocked websocket origin", zap.String("origin", r.Header.Get("Origin")))
			return false
		},
	}
	return h
}

// HandleConnection, upgrade eder, client'ı Hub'a kaydeder ve pump'ları başlatır.
// ReadPump bu goroutine'de bağlantı kapanana kadar bloklar.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader yanıtı zaten yazdı.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		id:       uuid.NewString(),
		remoteIP: ratelimit.RemoteIP(r),
		send:     make(chan Event, sendBufferSize),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}

// originChecker, Origin header'ını normalize edip izin listesiyle karşılaştırır.
type originChecker struct {
	allowAll bool
	origins  map[string]struct{}
}

func newOriginChecker(origins []string) originChecker {
	oc := originChecker{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			oc.allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			oc.origins[n] = struct{}{}
		}
	}
	return oc
}

// allowed: Origin yoksa (tarayıcı dışı client) veya aynı host ise izin verilir.
func (oc originChecker) allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || oc.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if u, err := url.Parse(n); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok = oc.origins[n]
	return ok
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
