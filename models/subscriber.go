package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Subscriber, bildirim registry'sindeki tek kayıt.
//
// Endpoint kaydı tekil olarak tanımlar: Telegram'da chat id, Web Push'ta
// push service URL'i, e-postada adres. Aynı endpoint tekrar kaydolursa
// son yazan kazanır (last-write-wins).
type Subscriber struct {
	Endpoint  string    `json:"endpoint"`
	Username  string    `json:"username,omitempty"`
	Keys      *PushKeys `json:"keys,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushKeys, Web Push subscription'ının şifreleme anahtarları.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription, tarayıcının PushManager.subscribe() çıktısı.
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// SubscriberList, subscribers.json dokümanı.
//
// Eski Telegram dosyası (telegram_chat_ids.json) düz bir chat id dizisidir:
// ["12345", 67890]. Bu elemanlar Endpoint'i dolu, username'siz kayıtlara dönüşür.
type SubscriberList []Subscriber

// UnmarshalJSON, kayıt nesnelerini ve çıplak chat id'lerini birlikte okur.
func (l *SubscriberList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SubscriberList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] != '{' {
			id, err := DecodeID(item)
			if err != nil {
				return err
			}
			if id != "" {
				out = append(out, Subscriber{Endpoint: id})
			}
			continue
		}
		var s Subscriber
		if err := json.Unmarshal(item, &s); err != nil {
			return err
		}
		if s.Endpoint != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}
