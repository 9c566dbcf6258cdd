// Package main: HTTP route registration.
//
// Sohbet trafiği /ws üzerinden akar. HTTP tarafı: health, upload, bildirim
// aboneliği ve statik dosyalar. Ticket gerektiren route'lar ticketMw.Require
// ile sarılır.
package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/middleware"
)

func initRoutes(cfg *config.Config, h *Handlers, ticketMw *middleware.TicketMiddleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	r.Get("/api/health", h.Health.Health)
	r.Get("/ws", h.WS.HandleConnection)

	r.Group(func(r chi.Router) {
		r.Use(ticketMw.Require)
		r.Post("/upload", h.Upload.Upload)
	})

	// Bildirim endpoint'leri sadece ilgili transport aktifken açılır.
	switch cfg.Notify.Transport {
	case config.TransportTelegram:
		r.Group(func(r chi.Router) {
			r.Use(ticketMw.Require)
			r.Post("/add-chat-id", h.Subscription.AddChatID)
			r.Get("/chat-ids", h.Subscription.ListChatIDs)
		})

	case config.TransportWebPush:
		r.Get("/vapid-public-key", h.Subscription.VAPIDPublicKey)
		r.Group(func(r chi.Router) {
			r.Use(ticketMw.Require)
			r.Post("/subscribe", h.Subscription.Subscribe)
			r.Post("/unsubscribe", h.Subscription.Unsubscribe)
			r.Get("/subscriptions", h.Subscription.ListSubscriptions)
		})
	}

	// Yüklenen dosyalar: sadece düz dosya isimleri, alt dizin yok.
	uploads := http.FileServer(http.Dir(cfg.Upload.Dir))
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "*")
		if name == "" || strings.ContainsAny(name, `/\`) {
			http.NotFound(w, req)
			return
		}
		http.StripPrefix("/uploads", uploads).ServeHTTP(w, req)
	})

	r.Handle("/*", http.FileServer(http.Dir(cfg.Server.PublicDir)))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
