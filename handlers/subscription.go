package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/pkg/telegram"
	"github.com/akinalp/duet/services"
)

// maxSubscriptionBody, abonelik isteklerinin body sınırı.
const maxSubscriptionBody = 16 << 10

// SubscriptionHandler, bildirim registry'sinin HTTP yüzü.
//
// Telegram transport'unda chat id endpoint'leri, Web Push transport'unda
// VAPID + subscribe endpoint'leri route'lanır (bkz. init_routes.go).
type SubscriptionHandler struct {
	notifier       services.NotificationService
	vapidPublicKey string
	log            *zap.Logger
}

// NewSubscriptionHandler, constructor. vapidPublicKey Web Push dışında boş kalır.
func NewSubscriptionHandler(notifier services.NotificationService, vapidPublicKey string, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		notifier:       notifier,
		vapidPublicKey: vapidPublicKey,
		log:            log.Named("subscriptions"),
	}
}

// ─── Telegram ───

// chatIDRequest, POST /add-chat-id body'si. chatId string veya sayı olabilir.
type chatIDRequest struct {
	ChatID json.RawMessage `json:"chatId"`
}

// parse, chat id'yi normalize edilmiş decimal string'e çevirir.
func (r chatIDRequest) parse() (string, error) {
	raw := bytes.TrimSpace(r.ChatID)
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: chatId is required", pkg.ErrBadRequest)
		}
		s = n.String()
	}
	id, err := telegram.ParseChatID(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: chatId must be an integer", pkg.ErrBadRequest)
	}
	return strconv.FormatInt(id, 10), nil
}

// AddChatID godoc
// POST /add-chat-id
// Body: {"chatId": "123456"}
func (h *SubscriptionHandler) AddChatID(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	var req chatIDRequest
	if err := pkg.DecodeJSON(w, r, maxSubscriptionBody, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	chatID, err := req.parse()
	if err != nil {
		pkg.Error(w, err)
		return
	}

	if err := h.notifier.Subscribe(r.Context(), models.Subscriber{Endpoint: chatID, Username: username}); err != nil {
		pkg.Error(w, err)
		return
	}
	h.log.Info("telegram chat id added", zap.String("username", username), zap.String("chat_id", chatID))

	pkg.RawJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Chat ID added",
		"chatId":       chatID,
		"totalChatIds": len(h.notifier.Subscribers()),
	})
}

// ListChatIDs godoc
// GET /chat-ids
func (h *SubscriptionHandler) ListChatIDs(w http.ResponseWriter, r *http.Request) {
	subs := h.notifier.Subscribers()
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.Endpoint)
	}
	pkg.RawJSON(w, http.StatusOK, map[string]any{"chatIds": ids, "total": len(ids)})
}

// ─── Web Push ───

// VAPIDPublicKey godoc
// GET /vapid-public-key
// Tarayıcı PushManager.subscribe(applicationServerKey) için kullanır.
func (h *SubscriptionHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		pkg.Error(w, fmt.Errorf("%w: web push is not configured", pkg.ErrNotFound))
		return
	}
	pkg.RawJSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidPublicKey})
}

// subscribeRequest, POST /subscribe body'si. username alanı eski client'lar
// için kabul edilir ama ticket'taki kullanıcı adı esas alınır.
type subscribeRequest struct {
	Subscription models.PushSubscription `json:"subscription"`
	Username     string                  `json:"username"`
}

func (r *subscribeRequest) validate() error {
	u, err := url.Parse(r.Subscription.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: subscription endpoint must be an https URL", pkg.ErrBadRequest)
	}
	if r.Subscription.Keys.P256dh == "" || r.Subscription.Keys.Auth == "" {
		return fmt.Errorf("%w: subscription keys are required", pkg.ErrBadRequest)
	}
	return nil
}

// Subscribe godoc
// POST /subscribe
// Body: {"subscription": {"endpoint": "...", "keys": {"p256dh": "...", "auth": "..."}}}
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := pkg.DecodeJSON(w, r, maxSubscriptionBody, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		pkg.Error(w, err)
		return
	}
	if req.Username != "" && req.Username != username {
		h.log.Warn("subscription username differs from ticket", zap.String("ticket", username), zap.String("body", req.Username))
	}

	keys := req.Subscription.Keys
	if err := h.notifier.Subscribe(r.Context(), models.Subscriber{
		Endpoint: req.Subscription.Endpoint,
		Username: username,
		Keys:     &keys,
	}); err != nil {
		pkg.Error(w, err)
		return
	}
	h.log.Info("push subscription added", zap.String("username", username))

	pkg.RawJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Subscribed"})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe godoc
// POST /unsubscribe
// Body: {"endpoint": "..."}
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := pkg.DecodeJSON(w, r, maxSubscriptionBody, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if req.Endpoint == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	removed := h.notifier.Unsubscribe(r.Context(), req.Endpoint)
	pkg.RawJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

type subscriptionView struct {
	Endpoint  string    `json:"endpoint"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListSubscriptions godoc
// GET /subscriptions
// Anahtarlar yanıta konmaz.
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := h.notifier.Subscribers()
	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, subscriptionView{Endpoint: s.Endpoint, Username: s.Username, CreatedAt: s.CreatedAt})
	}
	pkg.RawJSON(w, http.StatusOK, map[string]any{"subscriptions": out, "total": len(out)})
}
