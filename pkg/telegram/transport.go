// Package telegram, Telegram bot üzerinden bildirim gönderir ve bot'a gelen
// /start, /register, /stop komutlarını long-polling ile işler.
//
// Subscriber.Endpoint Telegram chat id'sinin decimal string halidir.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
)

// Bot, *tgbotapi.BotAPI'nin kullandığımız alt kümesi. Test'te fake ile değişir.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Transport, services.NotificationTransport implementasyonu.
type Transport struct {
	bot Bot
}

// NewTransport, verilen bot ile transport oluşturur.
func NewTransport(bot Bot) *Transport {
	return &Transport{bot: bot}
}

func (t *Transport) Name() string { return "telegram" }

// Send, bildirimi HTML parse mode ile chat'e gönderir.
//
// Bot engellendiyse (403) veya chat artık yoksa hata pkg.ErrSubscriberGone ile
// wrap edilir; dispatcher chat id'yi registry'den siler.
func (t *Transport) Send(ctx context.Context, sub models.Subscriber, n models.Notification) error {
	chatID, err := ParseChatID(sub.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrSubscriberGone, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, formatNotification(n))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		if isGone(err) {
			return fmt.Errorf("%w: %v", pkg.ErrSubscriberGone, err)
		}
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// ParseChatID, endpoint string'ini chat id'ye çevirir. Grup chat'leri negatiftir.
func ParseChatID(endpoint string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(endpoint), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat id %q", endpoint)
	}
	return id, nil
}

func formatNotification(n models.Notification) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</b>")
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(n.Body))
	}
	return b.String()
}

// isGone: 403 "bot was blocked by the user", 400 "chat not found".
func isGone(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		var valErr tgbotapi.Error
		if !errors.As(err, &valErr) {
			return false
		}
		apiErr = &valErr
	}
	if apiErr.Code == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "chat not found")
}
