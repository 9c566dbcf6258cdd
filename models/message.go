package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType, mesajın içerik tipini belirtir.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
)

// Mesaj sınırları.
const (
	MaxMessageRunes = 4000
	PreviewRunes    = 100
)

// Message, sohbet log'undaki tek bir mesaj.
//
// ReadBy hiçbir zaman yazarı içermez; yazarın mesajı "okuması" anlamsızdır.
// ReplyTo.Preview oluşturulma anındaki snapshot'tır: parent mesaj sonradan
// silinse veya expire olsa bile değişmez.
type Message struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Text      string      `json:"text"`
	Media     *Media      `json:"media,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	ReadBy    []string    `json:"readBy"`
	ReplyTo   *ReplyRef   `json:"replyTo,omitempty"`
}

// Media, upload servisinin ürettiği dosya tanımı.
// JSON alan adları client'ın beklediği upload yanıtıyla aynıdır.
type Media struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	MimeType     string `json:"type,omitempty"`
}

// ReplyRef, yanıtlanan mesaja referans + denormalize preview.
type ReplyRef struct {
	MessageID string        `json:"messageId"`
	Preview   *ReplyPreview `json:"preview,omitempty"`
}

// ReplyPreview, parent mesajın yanıt anındaki özeti.
type ReplyPreview struct {
	Username  string    `json:"username"`
	Preview   string    `json:"preview"`
	HasMedia  bool      `json:"hasMedia"`
	Timestamp time.Time `json:"timestamp"`
}

// HasReader, username'in mesajı okuyup okumadığını döner.
func (m *Message) HasReader(username string) bool {
	return slices.Contains(m.ReadBy, username)
}

// AddReader, username'i ReadBy'a ekler. Yazar veya zaten okumuş biri için
// hiçbir şey yapmaz ve false döner.
func (m *Message) AddReader(username string) bool {
	if username == "" || username == m.Username || m.HasReader(username) {
		return false
	}
	m.ReadBy = append(m.ReadBy, username)
	return true
}

// Expired, mesajın yaşı expiry'ye eşit veya büyükse true döner.
// Sınır exclusive: tam 24 saatlik mesaj expire olmuş sayılır.
func (m *Message) Expired(now time.Time, expiry time.Duration) bool {
	return now.Sub(m.Timestamp) >= expiry
}

// Preview, bu mesaja yanıt verildiğinde saklanacak snapshot'ı üretir.
func (m *Message) Preview() *ReplyPreview {
	return &ReplyPreview{
		Username:  m.Username,
		Preview:   Truncate(m.Text, PreviewRunes),
		HasMedia:  m.Media != nil,
		Timestamp: m.Timestamp,
	}
}

// Clone, broadcast için derin kopya döner. Servis dışına çıkan mesajlar
// iç state ile slice/pointer paylaşmamalı.
func (m Message) Clone() Message {
	c := m
	c.ReadBy = slices.Clone(m.ReadBy)
	if c.ReadBy == nil {
		c.ReadBy = []string{}
	}
	if m.Media != nil {
		media := *m.Media
		c.Media = &media
	}
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		if ref.Preview != nil {
			p := *ref.Preview
			ref.Preview = &p
		}
		c.ReplyTo = &ref
	}
	return c
}

// Truncate, metni rune bazında n karaktere kısaltıp "..." ekler.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// NewMessageRequest, client'ın new_message event'indeki payload.
// ReplyTo sadece parent mesajın id'sidir; preview'u server üretir.
type NewMessageRequest struct {
	Text    string `json:"text"`
	Media   *Media `json:"media,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// Validate, metni trim'ler ve boş/aşırı uzun mesajları reddeder.
func (r *NewMessageRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	r.ReplyTo = strings.TrimSpace(r.ReplyTo)

	if r.Text == "" && r.Media == nil {
		return fmt.Errorf("message needs text or media")
	}
	if utf8.RuneCountInString(r.Text) > MaxMessageRunes {
		return fmt.Errorf("message text exceeds %d characters", MaxMessageRunes)
	}
	if r.Media != nil && r.Media.Path == "" {
		return fmt.Errorf("media path is required")
	}
	return nil
}

// UnmarshalJSON, replyTo'yu string, sayı veya {messageId} nesnesi olarak kabul eder.
func (r *NewMessageRequest) UnmarshalJSON(data []byte) error {
	type alias NewMessageRequest
	aux := struct {
		ReplyTo json.RawMessage `json:"replyTo"`
		*alias
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ref, err := decodeReplyRef(aux.ReplyTo)
	if err != nil {
		return fmt.Errorf("replyTo: %w", err)
	}
	r.ReplyTo = ""
	if ref != nil {
		r.ReplyTo = ref.MessageID
	}
	return nil
}

// ─── Legacy normalization ───

// UnmarshalJSON, eski snapshot dosyalarındaki kayıtları normalize eder:
//   - id sayı olabilir (Date.now() tabanlı), string'e çevrilir
//   - readBy yoksa boş liste
//   - replyTo yok/null ise nil; çıplak bir id ise preview'suz referans
//   - type yoksa media varlığından türetilir
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		ID      json.RawMessage `json:"id"`
		ReplyTo json.RawMessage `json:"replyTo"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := DecodeID(aux.ID)
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	m.ID = id

	m.ReplyTo, err = decodeReplyRef(aux.ReplyTo)
	if err != nil {
		return fmt.Errorf("message %s replyTo: %w", m.ID, err)
	}

	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
	m.ReadBy = slices.DeleteFunc(m.ReadBy, func(u string) bool { return u == m.Username })

	if m.Type == "" {
		m.Type = MessageTypeText
		if m.Media != nil {
			m.Type = MessageTypeMedia
		}
	}
	return nil
}

func decodeReplyRef(raw json.RawMessage) (*ReplyRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '{' {
		var aux struct {
			MessageID json.RawMessage `json:"messageId"`
			Preview   *ReplyPreview   `json:"preview"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, err
		}
		id, err := DecodeID(aux.MessageID)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, nil
		}
		return &ReplyRef{MessageID: id, Preview: aux.Preview}, nil
	}

	id, err := DecodeID(raw)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return &ReplyRef{MessageID: id}, nil
}

// DecodeID, string veya sayı olarak yazılmış id'yi string'e çevirir.
func DecodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
