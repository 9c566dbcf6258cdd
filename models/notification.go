package models

import "time"

// Notification, transport'tan bağımsız bildirim içeriği.
// Her transport bunu kendi formatına çevirir (Telegram HTML mesajı,
// Web Push JSON payload'ı, e-posta HTML gövdesi).
type Notification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	MessageID string    `json:"messageId"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}
