package handlers

import (
	"net/http"
	"time"

	"github.com/akinalp/duet/pkg"
)

// RoomStats, health yanıtına eklenen canlı sayaçlar.
type RoomStats interface {
	ConnectionCount() int
}

// HealthHandler, GET /api/health.
type HealthHandler struct {
	stats     RoomStats
	transport string
	startedAt time.Time
}

// NewHealthHandler, constructor. transport aktif bildirim kanalının adıdır.
func NewHealthHandler(stats RoomStats, transport string) *HealthHandler {
	return &HealthHandler{stats: stats, transport: transport, startedAt: time.Now()}
}

type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Connections int    `json:"connections"`
	Transport   string `json:"notifications"`
	Uptime      string `json:"uptime"`
}

// Health godoc
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Service:     "duet",
		Connections: h.stats.ConnectionCount(),
		Transport:   h.transport,
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
	})
}
