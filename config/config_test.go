package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKET_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chat.MaxSessions != 2 {
		t.Fatalf("MaxSessions = %d, want 2", cfg.Chat.MaxSessions)
	}
	if cfg.Chat.Expiry() != 24*time.Hour {
		t.Fatalf("Expiry = %v, want 24h", cfg.Chat.Expiry())
	}
	if got := strings.Join(cfg.Chat.DefaultUsers, ","); got != "Azz,Queen" {
		t.Fatalf("DefaultUsers = %q", got)
	}
	if cfg.Upload.MaxSize != 50<<20 {
		t.Fatalf("Upload.MaxSize = %d", cfg.Upload.MaxSize)
	}
	if len(cfg.Ticket.Secret) != 64 {
		t.Fatalf("expected generated 32-byte hex secret, got %q", cfg.Ticket.Secret)
	}
	if cfg.Notify.Transport != TransportNone {
		t.Fatalf("Transport = %q", cfg.Notify.Transport)
	}
	if cfg.Notify.Preview {
		t.Fatal("notification preview must be opt-in")
	}
}

func TestLoadSectionPrefixes(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("CHAT_MAX_SESSIONS", "3")
	t.Setenv("EMAIL_RECIPIENTS", "Azz:azz@example.com,Queen:queen@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:9999" {
		t.Fatalf("Addr = %q", cfg.Server.Addr())
	}
	if cfg.Chat.MaxSessions != 3 {
		t.Fatalf("MaxSessions = %d", cfg.Chat.MaxSessions)
	}
	if cfg.Email.Recipients["Queen"] != "queen@example.com" {
		t.Fatalf("Recipients = %v", cfg.Email.Recipients)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Chat:   ChatConfig{MaxSessions: 2, ExpiryHours: 24, SweepInterval: time.Hour, DefaultUsers: []string{"Azz"}},
			Store:  StoreConfig{Driver: StoreFile},
			Upload: UploadConfig{MaxSize: 1},
			Notify: NotifyConfig{Transport: TransportNone, QueueSize: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero sessions", func(c *Config) { c.Chat.MaxSessions = 0 }, "CHAT_MAX_SESSIONS"},
		{"zero expiry", func(c *Config) { c.Chat.ExpiryHours = 0 }, "CHAT_EXPIRY_HOURS"},
		{"bad driver", func(c *Config) { c.Store.Driver = "redis" }, "STORE_DRIVER"},
		{"bad transport", func(c *Config) { c.Notify.Transport = "sms" }, "NOTIFY_TRANSPORT"},
		{"telegram without token", func(c *Config) { c.Notify.Transport = TransportTelegram }, "TELEGRAM_BOT_TOKEN"},
		{"webpush without keys", func(c *Config) { c.Notify.Transport = TransportWebPush }, "VAPID"},
		{"email without key", func(c *Config) { c.Notify.Transport = TransportEmail }, "EMAIL_RESEND_API_KEY"},
		{"mixed case transport", func(c *Config) {
			c.Notify.Transport = "Telegram"
			c.Telegram.BotToken = "x"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %s", err, tt.wantErr)
			}
		})
	}
}
