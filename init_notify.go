// Package main: bildirim transport'unun seçimi.
//
// NOTIFY_TRANSPORT aynı anda tek bir kanalı açar. Telegram seçildiyse bot
// komutlarını dinleyen poller da burada kurulur; e-postada alıcılar
// config'ten gelir ve registry'ye yazılmaz.
package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg/email"
	"github.com/akinalp/duet/pkg/telegram"
	"github.com/akinalp/duet/pkg/webpush"
	"github.com/akinalp/duet/services"
)

// NotifyStack, seçilen transport ve ona bağlı parçalar.
type NotifyStack struct {
	Transport      services.NotificationTransport // none ise nil
	Name           string
	Bot            telegram.Bot // sadece telegram
	Static         []models.Subscriber
	VAPIDPublicKey string
}

func initNotifyTransport(cfg *config.Config, log *zap.Logger) (*NotifyStack, error) {
	stack := &NotifyStack{Name: cfg.Notify.Transport}

	switch cfg.Notify.Transport {
	case config.TransportTelegram:
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
		}
		bot.Debug = false
		log.Info("telegram bot authorized", zap.String("bot", bot.Self.UserName))
		stack.Bot = bot
		stack.Transport = telegram.NewTransport(bot)

	case config.TransportWebPush:
		t := webpush.NewTransport(cfg.WebPush.VAPIDPublicKey, cfg.WebPush.VAPIDPrivateKey, cfg.WebPush.Subject)
		stack.Transport = t
		stack.VAPIDPublicKey = t.PublicKey()

	case config.TransportEmail:
		stack.Transport = email.NewTransport(cfg.Email.ResendAPIKey, cfg.Email.From)
		stack.Static = email.Recipients(cfg.Email.Recipients)
		if len(stack.Static) == 0 {
			log.Warn("email transport selected but EMAIL_RECIPIENTS is empty")
		}
	}
	return stack, nil
}
