// Package webpush, bildirimleri VAPID imzalı Web Push mesajı olarak tarayıcılara gönderir.
package webpush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
)

// defaultTTL, push service'in teslim edilemeyen mesajı tutacağı süre (saniye).
const defaultTTL = 24 * 60 * 60

// Transport, services.NotificationTransport implementasyonu.
type Transport struct {
	publicKey  string
	privateKey string
	subject    string
	client     wp.HTTPClient // nil ise webpush-go varsayılan http.Client kullanır
}

// NewTransport, VAPID anahtar çifti ile transport oluşturur.
// subject bir e-posta adresi ("mailto:" öneki olabilir) veya https URL'idir;
// push service'ler iletişim için kullanır. webpush-go "mailto:" önekini kendisi ekler.
func NewTransport(publicKey, privateKey, subject string) *Transport {
	return &Transport{
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    strings.TrimPrefix(subject, "mailto:"),
	}
}

func (t *Transport) Name() string { return "webpush" }

// PublicKey, client'ın PushManager.subscribe() çağrısında kullanacağı VAPID anahtarı.
func (t *Transport) PublicKey() string { return t.publicKey }

// payload, service worker'ın push event'inde okuduğu JSON.
type payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	MessageID string `json:"messageId"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Send, bildirimi şifreleyip push service'e POST eder.
// 404 ve 410 subscription'ın artık geçersiz olduğunu gösterir.
func (t *Transport) Send(ctx context.Context, sub models.Subscriber, n models.Notification) error {
	if sub.Keys == nil || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("%w: subscription has no encryption keys", pkg.ErrSubscriberGone)
	}

	body, err := json.Marshal(payload{
		Title:     n.Title,
		Body:      n.Body,
		Author:    n.Author,
		MessageID: n.MessageID,
		URL:       n.URL,
		Timestamp: n.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := wp.SendNotificationWithContext(ctx, body, &wp.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     wp.Keys{Auth: sub.Keys.Auth, P256dh: sub.Keys.P256dh},
	}, &wp.Options{
		HTTPClient:      t.client,
		Subscriber:      t.subject,
		VAPIDPublicKey:  t.publicKey,
		VAPIDPrivateKey: t.privateKey,
		TTL:             defaultTTL,
		Urgency:         wp.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("web push send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: push service returned %d", pkg.ErrSubscriberGone, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("web push rejected with status %d", resp.StatusCode)
	}
	return nil
}
