package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/pkg/i18n"
	"github.com/akinalp/duet/pkg/ratelimit"
	"github.com/akinalp/duet/ws"
)

// routerOpTimeout, tek bir event'in persistence işlemleri için üst sınır.
const routerOpTimeout = 10 * time.Second

// MessageNotifier, router'ın bildirim dispatcher'ından kullandığı tek metod.
type MessageNotifier interface {
	Enqueue(msg models.Message)
}

// RateLimits, router'ın kullandığı limiter'lar. nil olan limiter kapalıdır.
type RateLimits struct {
	Join    *ratelimit.JoinRateLimiter
	Message *ratelimit.MessageRateLimiter
}

// EventRouter, ws event'lerini servis çağrılarına çevirir ve fan-out'a karar verir.
//
// Bağlantı durumları: Unbound (bağlı, join yok) → Bound (join başarılı) → Closed.
// Unbound bağlantıdan gelen join dışındaki her event sessizce yok sayılır.
//
// Tüm handler'lar tek bir mutex altında çalışır: roster, mesaj log'u ve
// registry'ler üzerindeki mutasyonlar birbirini hiç gözlemleyemez. Expiry
// sweep de aynı mutex'ten geçer.
type EventRouter struct {
	presence  PresenceService
	messages  MessageService
	notifier  MessageNotifier
	tickets   TicketService
	hub       ws.EventPublisher
	limits    RateLimits
	localizer *i18n.Localizer
	log       *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewEventRouter, router'ı oluşturur. notifier nil olabilir.
func NewEventRouter(
	presence PresenceService,
	messages MessageService,
	notifier MessageNotifier,
	tickets TicketService,
	hub ws.EventPublisher,
	limits RateLimits,
	locale string,
	log *zap.Logger,
) *EventRouter {
	return &EventRouter{
		presence:  presence,
		messages:  messages,
		notifier:  notifier,
		tickets:   tickets,
		hub:       hub,
		limits:    limits,
		localizer: i18n.NewLocalizer(locale),
		log:       log.Named("router"),
		now:       time.Now,
	}
}

// HandleEvent, ws.Hub'ın OnClientEvent callback'i.
func (r *EventRouter) HandleEvent(connID, remoteIP string, event ws.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), routerOpTimeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	username, bound := r.presence.Username(connID)

	if event.Op == ws.OpJoin {
		if bound {
			r.log.Debug("join on bound connection ignored", zap.String("conn_id", connID), zap.String("username", username))
			return
		}
		r.handleJoin(ctx, connID, remoteIP, event)
		return
	}

	if !bound {
		// Preview mesaj içeriği taşır; join olmamış bağlantı göremez. Bekleyen
		// isteğin çözülmesi için red aynı ack ile döner.
		if event.Op == ws.OpGetReplyPreview {
			r.hub.SendTo(connID, ws.Event{Op: ws.OpUnauthorized, Ack: event.Ack, Data: ws.ErrorData{
				Code:    "not_joined",
				Message: r.localizer.T("chat.unauthorized"),
			}})
			return
		}
		r.log.Debug("event from unbound connection ignored", zap.String("conn_id", connID), zap.String("op", event.Op))
		return
	}

	switch event.Op {
	case ws.OpNewMessage:
		r.handleNewMessage(ctx, connID, username, event)
	case ws.OpTyping:
		r.handleTyping(connID, username, event)
	case ws.OpMarkAsRead:
		r.handleMarkAsRead(ctx, username, event)
	case ws.OpClearMessages:
		r.handleClearMessages(ctx, username)
	case ws.OpDeleteMessage:
		r.handleDeleteMessage(ctx, connID, username, event)
	case ws.OpGetReplyPreview:
		r.handleReplyPreview(connID, event)
	default:
		r.log.Debug("unknown op", zap.String("conn_id", connID), zap.String("op", event.Op))
	}
}

// HandleDisconnect, ws.Hub'ın OnClientDisconnect callback'i.
func (r *EventRouter) HandleDisconnect(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), routerOpTimeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.presence.Leave(ctx, connID)
	if !ok {
		r.log.Debug("anonymous connection closed", zap.String("conn_id", connID))
		return
	}

	r.hub.BroadcastToAll(ws.Event{Op: ws.OpUserListUpdate, Data: res.Roster})
	r.hub.BroadcastToAllExcept(connID, ws.Event{
		Op:   ws.OpUserLeft,
		Data: ws.UserPresenceData{Username: res.Username, Timestamp: r.now()},
	})

	r.log.Info("user left",
		zap.String("username", res.Username),
		zap.String("conn_id", connID),
		zap.Duration("session", res.Duration.Round(time.Second)),
	)
}

// ─── Join ───

func (r *EventRouter) handleJoin(ctx context.Context, connID, remoteIP string, event ws.InboundEvent) {
	var data ws.JoinData
	if err := event.Decode(&data); err != nil {
		r.sendError(connID, ws.OpUnauthorized, "invalid_join", r.localizer.T("chat.unauthorized"))
		return
	}
	username := strings.TrimSpace(data.Username)

	if r.limits.Join != nil && !r.limits.Join.Allow(remoteIP) {
		retry := r.limits.Join.RetryAfterSeconds(remoteIP)
		r.log.Warn("join rate limited", zap.String("remote_ip", remoteIP), zap.String("username", username))
		r.hub.SendTo(connID, ws.Event{Op: ws.OpRateLimited, Data: ws.ErrorData{
			Code:       "join_rate_limited",
			Message:    r.localizer.TWithParams("chat.rateLimited", map[string]string{"seconds": strconv.Itoa(retry)}),
			RetryAfter: retry,
		}})
		return
	}

	roster, err := r.presence.Join(ctx, connID, username)
	if err != nil {
		r.rejectJoin(connID, remoteIP, username, err)
		return
	}

	if r.limits.Join != nil {
		r.limits.Join.Reset(remoteIP)
	}
	r.hub.Bind(connID, username)

	ticket, err := r.tickets.Issue(username)
	if err != nil {
		r.log.Error("failed to issue session ticket", zap.String("username", username), zap.Error(err))
	}

	r.hub.SendTo(connID, ws.Event{Op: ws.OpJoined, Data: ws.JoinedData{Username: username, Ticket: ticket}})
	r.hub.SendTo(connID, ws.Event{Op: ws.OpLoadMessages, Data: r.messages.Messages()})

	// Odaya giren kullanıcı mevcut mesajları görmüş sayılır; yazarlar da
	// çift tik görsün diye güncelleme herkese gider.
	if changed := r.messages.MarkAllUnreadOnLogin(ctx, username); len(changed) > 0 {
		r.hub.BroadcastToAll(ws.Event{Op: ws.OpReadStatusUpdate, Data: ws.ReadStatusData{
			Type:            ws.ReadBulk,
			Username:        username,
			Messages:        r.messages.Messages(),
			UpdatedMessages: changed,
		}})
		r.log.Info("messages marked read on login", zap.String("username", username), zap.Int("count", len(changed)))
	}

	r.hub.BroadcastToAll(ws.Event{Op: ws.OpUserListUpdate, Data: roster})
	r.hub.BroadcastToAllExcept(connID, ws.Event{
		Op:   ws.OpUserJoined,
		Data: ws.UserPresenceData{Username: username, Timestamp: r.now()},
	})

	r.log.Info("user joined", zap.String("username", username), zap.String("conn_id", connID))
}

// rejectJoin, join hatasını ilgili rejection event'ine çevirir. Bağlantı açık
// kalır; client tekrar deneyebilir.
func (r *EventRouter) rejectJoin(connID, remoteIP, username string, err error) {
	switch {
	case errors.Is(err, pkg.ErrUnauthorized):
		r.sendError(connID, ws.OpUnauthorized, "unauthorized", r.localizer.T("chat.unauthorized"))
		r.log.Warn("unauthorized join attempt", zap.String("username", username), zap.String("remote_ip", remoteIP))

	case errors.Is(err, pkg.ErrRoomFull):
		msg := r.localizer.TWithParams("chat.roomFull", map[string]string{"max": strconv.Itoa(r.presence.MaxSessions())})
		r.sendError(connID, ws.OpRoomFull, "room_full", msg)
		r.log.Info("room full", zap.String("username", username))

	case errors.Is(err, pkg.ErrUsernameTaken):
		msg := r.localizer.TWithParams("chat.usernameTaken", map[string]string{"username": username})
		r.sendError(connID, ws.OpUsernameTaken, "username_taken", msg)
		r.log.Info("username already online", zap.String("username", username))

	default:
		r.log.Warn("join failed", zap.String("username", username), zap.Error(err))
	}
}

// ─── Messages ───

func (r *EventRouter) handleNewMessage(ctx context.Context, connID, username string, event ws.InboundEvent) {
	if r.limits.Message != nil && !r.limits.Message.Allow(username) {
		retry := r.limits.Message.CooldownSeconds(username)
		r.hub.SendTo(connID, ws.Event{Op: ws.OpRateLimited, Data: ws.ErrorData{
			Code:       "message_rate_limited",
			Message:    r.localizer.TWithParams("chat.rateLimited", map[string]string{"seconds": strconv.Itoa(retry)}),
			RetryAfter: retry,
		}})
		return
	}

	var req models.NewMessageRequest
	if err := event.Decode(&req); err != nil {
		r.sendError(connID, ws.OpMessageError, "invalid_message", r.localizer.T("chat.invalidMessage"))
		return
	}

	msg, err := r.messages.Append(ctx, username, req)
	if err != nil {
		if errors.Is(err, pkg.ErrInvalidReply) {
			r.sendError(connID, ws.OpMessageError, "invalid_reply", r.localizer.T("chat.invalidReply"))
		} else {
			r.sendError(connID, ws.OpMessageError, "invalid_message", r.localizer.T("chat.invalidMessage"))
		}
		r.log.Debug("message rejected", zap.String("username", username), zap.Error(err))
		return
	}

	r.hub.BroadcastToAll(ws.Event{Op: ws.OpMessageReceived, Data: msg})

	// Odada olan diğer kullanıcılar mesajı anında görmüş sayılır.
	online := r.presence.OnlineUsernames(username)
	if updated, ok := r.messages.AutoMarkRead(ctx, msg.ID, online); ok {
		r.hub.BroadcastToAll(ws.Event{Op: ws.OpReadStatusUpdate, Data: ws.ReadStatusData{
			Type:          ws.ReadAuto,
			MessageID:     updated.ID,
			ReadBy:        updated.ReadBy,
			MessageSender: updated.Username,
		}})
		msg = updated
	}

	if r.notifier != nil {
		r.notifier.Enqueue(msg)
	}

	r.log.Info("message sent",
		zap.String("message_id", msg.ID),
		zap.String("username", username),
		zap.String("type", string(msg.Type)),
		zap.Bool("reply", msg.ReplyTo != nil),
	)
}

func (r *EventRouter) handleTyping(connID, username string, event ws.InboundEvent) {
	var data ws.TypingData
	if err := event.Decode(&data); err != nil {
		return
	}
	r.hub.BroadcastToAllExcept(connID, ws.Event{
		Op:   ws.OpUserTyping,
		Data: ws.UserTypingData{Username: username, IsTyping: data.IsTyping},
	})
}

func (r *EventRouter) handleMarkAsRead(ctx context.Context, username string, event ws.InboundEvent) {
	var ref ws.MessageRef
	if err := event.Decode(&ref); err != nil || ref.MessageID == "" {
		return
	}

	msg, ok := r.messages.MarkRead(ctx, ref.MessageID, username)
	if !ok {
		return
	}

	// Yazar dahil herkese: tüm client'lar aynı readBy görünümünde birleşir.
	r.hub.BroadcastToAll(ws.Event{Op: ws.OpReadStatusUpdate, Data: ws.ReadStatusData{
		Type:          ws.ReadSingle,
		MessageID:     msg.ID,
		ReadBy:        msg.ReadBy,
		Reader:        username,
		MessageSender: msg.Username,
	}})
}

func (r *EventRouter) handleClearMessages(ctx context.Context, username string) {
	count := r.messages.ClearAll(ctx)
	r.hub.BroadcastToAll(ws.Event{Op: ws.OpMessagesCleared, Data: ws.MessagesClearedData{ClearedBy: username, Count: count}})
	r.log.Info("messages cleared", zap.String("username", username), zap.Int("count", count))
}

func (r *EventRouter) handleDeleteMessage(ctx context.Context, connID, username string, event ws.InboundEvent) {
	var ref ws.MessageRef
	if err := event.Decode(&ref); err != nil || ref.MessageID == "" {
		return
	}

	msg, err := r.messages.Delete(ctx, ref.MessageID, username)
	if err != nil {
		if errors.Is(err, pkg.ErrForbidden) {
			r.sendError(connID, ws.OpMessageError, "forbidden", r.localizer.T("chat.forbidden"))
		}
		r.log.Debug("delete rejected", zap.String("username", username), zap.Error(err))
		return
	}

	r.hub.BroadcastToAll(ws.Event{Op: ws.OpMessageDeleted, Data: ws.MessageDeletedData{MessageID: msg.ID, DeletedBy: username}})
	r.log.Info("message deleted", zap.String("message_id", msg.ID), zap.String("username", username))
}

// handleReplyPreview, request/response: yanıt sadece isteyene ve aynı ack ile gider.
func (r *EventRouter) handleReplyPreview(connID string, event ws.InboundEvent) {
	var ref ws.MessageRef
	if err := event.Decode(&ref); err != nil {
		return
	}

	data := ws.ReplyPreviewData{MessageID: ref.MessageID}
	if preview, err := r.messages.ReplyPreview(ref.MessageID); err == nil {
		data.Found = true
		data.Preview = preview
	}
	r.hub.SendTo(connID, ws.Event{Op: ws.OpReplyPreview, Data: data, Ack: event.Ack})
}

// ─── Expiry & lifecycle ───

// SweepExpired, süresi dolan mesajları siler ve bir şey silindiyse
// messages_cleaned yayınlar. Silinen sayıyı döner.
func (r *EventRouter) SweepExpired(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.messages.SweepExpired(ctx, r.now())
	if len(removed) == 0 {
		return 0
	}
	r.hub.BroadcastToAll(ws.Event{Op: ws.OpMessagesCleaned, Data: ws.MessagesCleanedData{RemovedCount: len(removed)}})
	return len(removed)
}

// RunExpiryWorker, ctx iptal edilene kadar her interval'de SweepExpired çağırır.
// Başlangıç sweep'i main'de hydrate sonrası ayrıca yapılır.
func (r *EventRouter) RunExpiryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeSweep(ctx)
		}
	}
}

func (r *EventRouter) safeSweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in expiry sweep", zap.Any("panic", rec))
		}
	}()
	if n := r.SweepExpired(ctx); n > 0 {
		r.log.Info("expiry sweep removed messages", zap.Int("removed", n))
	}
}

// Shutdown, join olmamışlar dahil tüm bağlantılara kapanış bildirimi gönderir.
func (r *EventRouter) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hub.BroadcastToEveryConnection(ws.Event{
		Op:   ws.OpServerShutdown,
		Data: ws.ShutdownData{Message: r.localizer.T("chat.shutdown")},
	})
}

func (r *EventRouter) sendError(connID, op, code, message string) {
	r.hub.SendTo(connID, ws.Event{Op: op, Data: ws.ErrorData{Code: code, Message: message}})
}
