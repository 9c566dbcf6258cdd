// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
//
// Değerler environment variable'lardan okunur; development için .env dosyası
// desteklenir. Decode işini envconfig struct tag'leri yapar: her alt bölümün
// parent tag'i prefix olur, yani Server.Port → SERVER_PORT.
//
// Hiçbir secret (bot token, VAPID key, API key) koda gömülmez.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store driver'ları.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Notification transport'ları. Aynı anda tek bir transport aktiftir.
const (
	TransportNone     = "none"
	TransportTelegram = "telegram"
	TransportWebPush  = "webpush"
	TransportEmail    = "email"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Chat     ChatConfig     `envconfig:"CHAT"`
	Store    StoreConfig    `envconfig:"STORE"`
	Upload   UploadConfig   `envconfig:"UPLOAD"`
	Ticket   TicketConfig   `envconfig:"TICKET"`
	Notify   NotifyConfig   `envconfig:"NOTIFY"`
	Telegram TelegramConfig `envconfig:"TELEGRAM"`
	WebPush  WebPushConfig  `envconfig:"WEBPUSH"`
	Email    EmailConfig    `envconfig:"EMAIL"`
	Log      LogConfig      `envconfig:"LOG"`
	Rate     RateConfig     `envconfig:"RATE"`
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host           string   `envconfig:"HOST" default:"0.0.0.0"`
	Port           int      `envconfig:"PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080,http://127.0.0.1:8080"`
	PublicDir      string   `envconfig:"PUBLIC_DIR" default:"./public"`
}

// ChatConfig, oda kapasitesi ve mesaj saklama ayarları.
type ChatConfig struct {
	MaxSessions   int           `envconfig:"MAX_SESSIONS" default:"2"`
	ExpiryHours   int           `envconfig:"EXPIRY_HOURS" default:"24"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	DefaultUsers  []string      `envconfig:"DEFAULT_USERS" default:"Azz,Queen"`
}

// Expiry, mesaj saklama süresini duration olarak döner.
func (c ChatConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// StoreConfig, snapshot persistence ayarları.
type StoreConfig struct {
	Driver     string `envconfig:"DRIVER" default:"file"`
	DataDir    string `envconfig:"DATA_DIR" default:"./data"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/duet.db"`
}

// UploadConfig, dosya yükleme ayarları.
type UploadConfig struct {
	Dir     string `envconfig:"DIR" default:"./public/uploads"`
	MaxSize int64  `envconfig:"MAX_SIZE" default:"52428800"` // 50MB
}

// TicketConfig, join sonrası verilen session ticket (JWT) ayarları.
type TicketConfig struct {
	Secret string        `envconfig:"SECRET"`
	TTL    time.Duration `envconfig:"TTL" default:"24h"`
}

// NotifyConfig, bildirim dispatcher ayarları.
type NotifyConfig struct {
	Transport  string        `envconfig:"TRANSPORT" default:"none"`
	SkipOnline bool          `envconfig:"SKIP_ONLINE" default:"true"`
	Cooldown   time.Duration `envconfig:"COOLDOWN" default:"0s"`
	Preview    bool          `envconfig:"PREVIEW" default:"false"`
	QueueSize  int           `envconfig:"QUEUE_SIZE" default:"64"`
	Locale     string        `envconfig:"LOCALE" default:"en"`
}

// TelegramConfig, bot polling transport ayarları.
type TelegramConfig struct {
	BotToken    string        `envconfig:"BOT_TOKEN"`
	PollTimeout time.Duration `envconfig:"POLL_TIMEOUT" default:"10s"`
}

// WebPushConfig, VAPID anahtarları.
type WebPushConfig struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Subject         string `envconfig:"SUBJECT" default:"mailto:admin@localhost"`
}

// EmailConfig, Resend e-posta transport ayarları.
// Recipients formatı: "Azz:azz@example.com,Queen:queen@example.com".
type EmailConfig struct {
	ResendAPIKey string            `envconfig:"RESEND_API_KEY"`
	From         string            `envconfig:"FROM"`
	Recipients   map[string]string `envconfig:"RECIPIENTS"`
}

// LogConfig, zap logger ayarları.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// RateConfig, ws event rate limit ayarları.
type RateConfig struct {
	MessageMax      int           `envconfig:"MESSAGE_MAX" default:"5"`
	MessageWindow   time.Duration `envconfig:"MESSAGE_WINDOW" default:"5s"`
	MessageCooldown time.Duration `envconfig:"MESSAGE_COOLDOWN" default:"15s"`
	JoinMax         int           `envconfig:"JOIN_MAX" default:"10"`
	JoinWindow      time.Duration `envconfig:"JOIN_WINDOW" default:"1m"`
}

// Load, .env (varsa) + environment'tan Config oluşturur ve doğrular.
func Load() (*Config, error) {
	// .env yoksa sessizce devam; production'da gerçek env kullanılır.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Ticket.Secret == "" {
		// Process başına rastgele secret: restart sonrası eski ticket'lar geçersiz olur.
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Ticket.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate, tutarsız veya eksik ayarları reddeder.
func (c *Config) Validate() error {
	if c.Chat.MaxSessions < 1 {
		return fmt.Errorf("CHAT_MAX_SESSIONS must be >= 1, got %d", c.Chat.MaxSessions)
	}
	if c.Chat.ExpiryHours < 1 {
		return fmt.Errorf("CHAT_EXPIRY_HOURS must be >= 1, got %d", c.Chat.ExpiryHours)
	}
	if c.Chat.SweepInterval <= 0 {
		return fmt.Errorf("CHAT_SWEEP_INTERVAL must be positive")
	}
	if len(c.Chat.DefaultUsers) == 0 {
		return fmt.Errorf("CHAT_DEFAULT_USERS must list at least one username")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be >= 1")
	}

	switch c.Store.Driver {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want file or sqlite)", c.Store.Driver)
	}

	c.Notify.Transport = strings.ToLower(c.Notify.Transport)
	switch c.Notify.Transport {
	case "":
		c.Notify.Transport = TransportNone
	case TransportNone:
	case TransportTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram transport")
		}
	case TransportWebPush:
		if c.WebPush.VAPIDPublicKey == "" || c.WebPush.VAPIDPrivateKey == "" {
			return fmt.Errorf("WEBPUSH_VAPID_PUBLIC_KEY and WEBPUSH_VAPID_PRIVATE_KEY are required for the webpush transport")
		}
	case TransportEmail:
		if c.Email.ResendAPIKey == "" || c.Email.From == "" {
			return fmt.Errorf("EMAIL_RESEND_API_KEY and EMAIL_FROM are required for the email transport")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.Notify.Transport)
	}
	return nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:8080").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate ticket secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
