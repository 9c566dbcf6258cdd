// Package main: Service katmanı başlatma.
//
// Sıralama: presence → upload → message (upload'ı MediaReclaimer olarak alır)
// → notifier (presence'ı OnlineChecker olarak alır) → router.
package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/pkg/ratelimit"
	"github.com/akinalp/duet/services"
	"github.com/akinalp/duet/ws"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Presence services.PresenceService
	Messages services.MessageService
	Upload   services.UploadService
	Tickets  services.TicketService
	Notifier services.NotificationService
	Router   *services.EventRouter
}

// RateLimiters, ws event rate limiter'ları.
type RateLimiters struct {
	Join    *ratelimit.JoinRateLimiter
	Message *ratelimit.MessageRateLimiter
}

// Close, limiter'ların temizleme goroutine'lerini durdurur.
func (l *RateLimiters) Close() {
	l.Join.Close()
	l.Message.Close()
}

func initServices(
	ctx context.Context,
	cfg *config.Config,
	repos *Repositories,
	notify *NotifyStack,
	hub ws.EventPublisher,
	log *zap.Logger,
) (*Services, *RateLimiters, error) {
	presence, err := services.NewPresenceService(ctx, repos.Users, repos.LastSeen, cfg.Chat.MaxSessions, log)
	if err != nil {
		return nil, nil, err
	}

	upload, err := services.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxSize)
	if err != nil {
		return nil, nil, err
	}

	messages, err := services.NewMessageService(ctx, repos.Messages, upload, cfg.Chat.Expiry(), log)
	if err != nil {
		return nil, nil, err
	}

	tickets, err := services.NewTicketService(cfg.Ticket.Secret, cfg.Ticket.TTL)
	if err != nil {
		return nil, nil, err
	}

	notifier, err := services.NewNotificationService(ctx, repos.Subscribers, notify.Transport, presence,
		services.NotificationOptions{
			SkipOnline: cfg.Notify.SkipOnline,
			Cooldown:   cfg.Notify.Cooldown,
			Preview:    cfg.Notify.Preview,
			QueueSize:  cfg.Notify.QueueSize,
			Locale:     cfg.Notify.Locale,
			Static:     notify.Static,
		}, log)
	if err != nil {
		return nil, nil, err
	}

	limiters := &RateLimiters{
		Join:    ratelimit.NewJoinRateLimiter(cfg.Rate.JoinMax, cfg.Rate.JoinWindow),
		Message: ratelimit.NewMessageRateLimiter(cfg.Rate.MessageMax, cfg.Rate.MessageWindow, cfg.Rate.MessageCooldown),
	}

	router := services.NewEventRouter(presence, messages, notifier, tickets, hub,
		services.RateLimits{Join: limiters.Join, Message: limiters.Message},
		cfg.Notify.Locale, log)

	return &Services{
		Presence: presence,
		Messages: messages,
		Upload:   upload,
		Tickets:  tickets,
		Notifier: notifier,
		Router:   router,
	}, limiters, nil
}
