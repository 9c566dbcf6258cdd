// Package main: Handler katmanı başlatma.
package main

import (
	"go.uber.org/zap"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/handlers"
	"github.com/akinalp/duet/ws"
)

// Handlers, tüm handler instance'larını tutan container struct.
type Handlers struct {
	Health       *handlers.HealthHandler
	Upload       *handlers.UploadHandler
	Subscription *handlers.SubscriptionHandler
	WS           *ws.Handler
}

func initHandlers(cfg *config.Config, svcs *Services, notify *NotifyStack, hub *ws.Hub, log *zap.Logger) *Handlers {
	return &Handlers{
		Health:       handlers.NewHealthHandler(hub, notify.Name),
		Upload:       handlers.NewUploadHandler(svcs.Upload, log),
		Subscription: handlers.NewSubscriptionHandler(svcs.Notifier, notify.VAPIDPublicKey, log),
		WS:           ws.NewHandler(hub, cfg.Server.AllowedOrigins, log),
	}
}
