// Package email, yeni mesaj bildirimlerini Resend API üzerinden e-posta olarak gönderir.
//
// Alıcılar registry'den değil config'ten gelir (EMAIL_RECIPIENTS); bu yüzden
// kalıcı "gone" sinyali üretilmez, her hata sadece loglanır.
package email

import (
	"context"
	"fmt"
	"html"
	"maps"
	"slices"
	"time"

	"github.com/resend/resend-go/v3"

	"github.com/akinalp/duet/models"
)

// mailer, Resend client'ının kullandığımız tek metodu. Test'te fake ile değişir.
type mailer interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Transport, services.NotificationTransport implementasyonu.
type Transport struct {
	mailer    mailer
	fromEmail string
}

// NewTransport, Resend API key'i ile transport oluşturur.
// fromEmail Resend'de doğrulanmış bir domain altında olmalı.
func NewTransport(apiKey, fromEmail string) *Transport {
	client := resend.NewClient(apiKey)
	return &Transport{mailer: client.Emails, fromEmail: fromEmail}
}

func (t *Transport) Name() string { return "email" }

// Send, tek alıcıya bildirim e-postası gönderir. sub.Endpoint e-posta adresidir.
func (t *Transport) Send(ctx context.Context, sub models.Subscriber, n models.Notification) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("duet <%s>", t.fromEmail),
		To:      []string{sub.Endpoint},
		Subject: n.Title,
		Html:    renderHTML(n),
	}

	if _, err := t.mailer.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

// Recipients, config'teki username → adres map'ini statik subscriber listesine çevirir.
// Sıralama deterministik olsun diye username'e göre yapılır.
func Recipients(byUser map[string]string) []models.Subscriber {
	out := make([]models.Subscriber, 0, len(byUser))
	for _, username := range slices.Sorted(maps.Keys(byUser)) {
		addr := byUser[username]
		if addr == "" {
			continue
		}
		out = append(out, models.Subscriber{Endpoint: addr, Username: username})
	}
	return out
}

func renderHTML(n models.Notification) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:24px;background-color:#1a1a2e;font-family:Arial,Helvetica,sans-serif;">
  <table width="480" cellpadding="0" cellspacing="0" style="background-color:#16213e;border-radius:8px;padding:32px;">
    <tr><td>
      <h2 style="color:#e2e8f0;font-size:18px;margin:0 0 16px 0;">%s</h2>
      <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 16px 0;">%s</p>
      <p style="color:#64748b;font-size:12px;margin:0;">%s</p>
    </td></tr>
  </table>
</body>
</html>`,
		html.EscapeString(n.Title),
		html.EscapeString(n.Body),
		n.Timestamp.UTC().Format(time.RFC1123),
	)
}
