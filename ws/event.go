// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
//   - Hub: tüm bağlantıları connID ile tutan merkezi yapı
//   - Client: tek bir WebSocket bağlantısı (ReadPump + WritePump)
//   - Event: client-server arası iletilen zarf {op, d, seq, ack}
//
// Hub iş mantığı bilmez. Gelen event'ler OnClientEvent callback'i ile
// services.EventRouter'a iletilir; router hangi event'in kime gideceğine
// karar verir ve Hub'ın Send/Broadcast metodlarını çağırır.
package ws

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/akinalp/duet/models"
)

// Event, server'dan client'a giden zarf.
//
// Seq bağlantı başına 1'den başlayan, boşluksuz artan sayaçtır; client bir
// atlama görürse event kaybolmuştur. Ack, request/response event'lerinde (get_reply_preview) client'ın
// gönderdiği korelasyon id'sinin aynısıdır.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
	Ack  string `json:"ack,omitempty"`
}

// InboundEvent, client'tan gelen zarf. Data op'a göre router'da parse edilir.
type InboundEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Ack  string          `json:"ack,omitempty"`
}

// Decode, Data'yı v'ye parse eder. Boş payload hata değildir.
func (e InboundEvent) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Client → Server operasyonları
const (
	OpJoin            = "join"
	OpNewMessage      = "new_message"
	OpTyping          = "typing"
	OpMarkAsRead      = "mark_as_read"
	OpClearMessages   = "clear_messages"
	OpDeleteMessage   = "delete_message"
	OpGetReplyPreview = "get_reply_preview"
	OpHeartbeat       = "heartbeat" // transport katmanında cevaplanır, router'a gitmez
)

// Server → Client operasyonları
const (
	OpJoined           = "joined"
	OpLoadMessages     = "load_messages"
	OpUserListUpdate   = "user_list_update"
	OpUserJoined       = "user_joined"
	OpUserLeft         = "user_left"
	OpUserTyping       = "user_typing"
	OpMessageReceived  = "message_received"
	OpReadStatusUpdate = "read_status_update"
	OpMessagesCleared  = "messages_cleared"
	OpMessagesCleaned  = "messages_cleaned"
	OpMessageDeleted   = "message_deleted"
	OpMessageError     = "message_error"
	OpReplyPreview     = "reply_preview"
	OpUnauthorized     = "unauthorized"
	OpRoomFull         = "room_full"
	OpUsernameTaken    = "username_taken"
	OpRateLimited      = "rate_limited"
	OpHeartbeatAck     = "heartbeat_ack"
	OpServerShutdown   = "server_shutdown"
)

// read_status_update alt tipleri
const (
	ReadSingle = "single_read"
	ReadAuto   = "auto_read"
	ReadBulk   = "bulk_read"
)

// ─── Client → Server payload'ları ───

// JoinData, join payload'ı. Eski client'lar d alanına çıplak string gönderir;
// UnmarshalJSON ikisini de kabul eder.
type JoinData struct {
	Username string `json:"username"`
}

func (d *JoinData) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		d.Username = name
		return nil
	}
	type plain JoinData
	return json.Unmarshal(data, (*plain)(d))
}

// TypingData, typing payload'ı. Çıplak boolean da kabul edilir.
type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

func (d *TypingData) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		d.IsTyping = b
		return nil
	}
	type plain TypingData
	return json.Unmarshal(data, (*plain)(d))
}

// MessageRef, sadece messageId taşıyan payload'lar (mark_as_read,
// delete_message, get_reply_preview). Çıplak id de kabul edilir; id string
// veya eski client'lardan gelen sayı olabilir.
type MessageRef struct {
	MessageID string `json:"messageId"`
}

func (d *MessageRef) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '{' {
		var aux struct {
			MessageID json.RawMessage `json:"messageId"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return err
		}
		raw = aux.MessageID
	}

	id, err := models.DecodeID(raw)
	if err != nil {
		return err
	}
	d.MessageID = id
	return nil
}

// ─── Server → Client payload'ları ───

// JoinedData, başarılı join'den sonra sadece katılan bağlantıya gider.
// Ticket HTTP endpoint'leri için Bearer token'dır.
type JoinedData struct {
	Username string `json:"username"`
	Ticket   string `json:"ticket"`
}

// UserPresenceData, user_joined / user_left payload'ı.
type UserPresenceData struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserTypingData, user_typing payload'ı.
type UserTypingData struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ReadStatusData, read_status_update payload'ı. Type'a göre dolu alanlar:
//   - single_read: MessageID, ReadBy, Reader, MessageSender
//   - auto_read:   MessageID, ReadBy, MessageSender
//   - bulk_read:   Username, Messages (tüm log), UpdatedMessages
type ReadStatusData struct {
	Type            string           `json:"type"`
	MessageID       string           `json:"messageId,omitempty"`
	ReadBy          []string         `json:"readBy,omitempty"`
	Reader          string           `json:"reader,omitempty"`
	MessageSender   string           `json:"messageSender,omitempty"`
	Username        string           `json:"username,omitempty"`
	Messages        []models.Message `json:"messages,omitempty"`
	UpdatedMessages []models.Message `json:"updatedMessages,omitempty"`
}

// MessagesClearedData, clear_messages sonrası herkese gider.
type MessagesClearedData struct {
	ClearedBy string `json:"clearedBy"`
	Count     int    `json:"count"`
}

// MessagesCleanedData, expiry sweep sonrası herkese gider.
type MessagesCleanedData struct {
	RemovedCount int `json:"removedCount"`
}

// MessageDeletedData, tek mesaj silindiğinde herkese gider.
type MessageDeletedData struct {
	MessageID string `json:"messageId"`
	DeletedBy string `json:"deletedBy"`
}

// ReplyPreviewData, get_reply_preview yanıtı. Found false ise Preview nil'dir.
type ReplyPreviewData struct {
	MessageID string               `json:"messageId"`
	Found     bool                 `json:"found"`
	Preview   *models.ReplyPreview `json:"preview,omitempty"`
}

// ErrorData, reddedilen isteklerin (join rejection, message_error,
// rate_limited) payload'ı. Message kullanıcı diline çevrilmiştir.
type ErrorData struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// ShutdownData, server_shutdown payload'ı.
type ShutdownData struct {
	Message string `json:"message"`
}
