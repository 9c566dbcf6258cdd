package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: bu sürede ne heartbeat ne pong gelirse bağlantı kopmuş sayılır.
	pongWait = 90 * time.Second

	// pingPeriod: WritePump'ın protokol seviyesinde ping gönderme aralığı.
	// pongWait'ten kısa olmalı.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize: 4000 karakterlik UTF-8 mesaj + zarf için yeterli.
	maxMessageSize = 64 * 1024

	// sendBufferSize: buffer dolarsa client yavaş sayılır ve bağlantı kapatılır.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısı.
//
// Her bağlantı için iki goroutine çalışır: ReadPump client'tan okur ve
// event'leri Hub callback'ine iletir, WritePump send channel'ını WS'e yazar.
// gorilla/websocket eşzamanlı tek okuyucu + tek yazıcıya izin verir.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string
	remoteIP string
	username string // Hub.mu altında okunur/yazılır
	send     chan Event

	seq int64 // sadece WritePump yazar
}

// ReadPump, bağlantı kapanana kadar mesaj okur. Bittiğinde client'ı Hub'dan çıkarır.
func (c *Client) ReadPump() {
	defer func() {
		if r := recover(); r != nil {
			c.hub.log.Error("panic in ws read pump", zap.String("conn_id", c.id), zap.Any("panic", r))
		}
		c.hub.requestUnregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.refreshDeadline(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return c.refreshDeadline() })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				c.hub.log.Warn("ws message exceeds read limit", zap.String("conn_id", c.id))
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				c.hub.log.Debug("unexpected ws close", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		var event InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil || event.Op == "" {
			c.hub.log.Debug("invalid ws message", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent: heartbeat burada cevaplanır, geri kalan her şey router'a gider.
func (c *Client) handleEvent(event InboundEvent) {
	if event.Op == OpHeartbeat {
		if err := c.refreshDeadline(); err != nil {
			return
		}
		c.hub.SendTo(c.id, Event{Op: OpHeartbeatAck, Ack: event.Ack})
		return
	}

	if c.hub.onEvent != nil {
		c.hub.onEvent(c.id, c.remoteIP, event)
	}
}

func (c *Client) refreshDeadline() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.log.Debug("failed to set read deadline", zap.String("conn_id", c.id), zap.Error(err))
		return err
	}
	return nil
}

// WritePump, send channel'ını WS'e yazar ve periyodik ping gönderir.
// Channel kapandığında (Hub client'ı çıkardı) close frame gönderip çıkar.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			c.seq++
			event.Seq = c.seq
			message, err := json.Marshal(event)
			if err != nil {
				c.hub.log.Error("failed to marshal event", zap.String("op", event.Op), zap.Error(err))
				continue
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write, sadece WritePump goroutine'inden çağrılır; conn'a tek yazıcı vardır.
func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
