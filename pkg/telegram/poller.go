package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/akinalp/duet/pkg/i18n"
)

// Registry, poller'ın /stop için ihtiyaç duyduğu işlem.
// services.NotificationService bunu karşılar.
type Registry interface {
	Unsubscribe(ctx context.Context, endpoint string) bool
}

// Poller, bot'a gelen update'leri long-polling ile okur.
//
// Bot kimseyi kendiliğinden abone yapmaz: /start sadece chat id'yi gösterir.
// Kayıt, ticket ile korunan /add-chat-id üzerinden web arayüzünden yapılır;
// böylece botu bulan yabancı biri bildirim alamaz.
type Poller struct {
	bot         Bot
	registry    Registry
	pollTimeout time.Duration
	log         *zap.Logger

	stopOnce sync.Once
}

// NewPoller, poller oluşturur. Run çağrılana kadar ağ trafiği yoktur.
func NewPoller(bot Bot, registry Registry, pollTimeout time.Duration, log *zap.Logger) *Poller {
	return &Poller{
		bot:         bot,
		registry:    registry,
		pollTimeout: pollTimeout,
		log:         log.Named("telegram"),
	}
}

// Run, ctx iptal edilene kadar update'leri işler.
func (p *Poller) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(p.pollTimeout.Seconds())

	updates := p.bot.GetUpdatesChan(u)
	p.log.Info("telegram poller started", zap.Duration("poll_timeout", p.pollTimeout))

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			p.log.Info("telegram poller stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			p.HandleUpdate(ctx, upd)
		}
	}
}

// Stop, tgbotapi'nin polling goroutine'ini durdurur. Birden fazla çağrı güvenlidir.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.bot.StopReceivingUpdates)
}

// HandleUpdate, tek bir update'i işler. Komut olmayan mesajlar yardım metni alır.
func (p *Poller) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	chatID := msg.Chat.ID
	endpoint := strconv.FormatInt(chatID, 10)

	lang := i18n.DefaultLanguage
	if msg.From != nil {
		lang = i18n.DetectLanguage(msg.From.LanguageCode)
	}
	loc := i18n.NewLocalizer(lang)

	switch msg.Command() {
	case "start", "register":
		p.log.Info("telegram chat asked for its id", zap.Int64("chat_id", chatID))
		p.reply(chatID, loc.TWithParams("telegram.link", map[string]string{"chatId": endpoint}))

	case "stop":
		removed := p.registry.Unsubscribe(ctx, endpoint)
		p.log.Info("telegram chat unregistered", zap.Int64("chat_id", chatID), zap.Bool("removed", removed))
		p.reply(chatID, loc.T("telegram.stopped"))

	default:
		p.reply(chatID, loc.T("telegram.help"))
	}
}

func (p *Poller) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := p.bot.Send(msg); err != nil {
		p.log.Warn("telegram reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
