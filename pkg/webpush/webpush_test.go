package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
)

// newBrowserKeys, tarayıcının üreteceği p256dh/auth çiftini taklit eder.
func newBrowserKeys(t *testing.T) *models.PushKeys {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return &models.PushKeys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	priv, pub, err := wp.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("GenerateVAPIDKeys: %v", err)
	}
	return NewTransport(pub, priv, "mailto:admin@example.com")
}

func TestTransport_Send(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		wantGone bool
	}{
		{"created", http.StatusCreated, false, false},
		{"gone", http.StatusGone, true, true},
		{"not found", http.StatusNotFound, true, true},
		{"server error", http.StatusInternalServerError, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHeaders http.Header
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotHeaders = r.Header.Clone()
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tr := newTestTransport(t)
			sub := models.Subscriber{Endpoint: srv.URL + "/push/abc", Keys: newBrowserKeys(t)}

			err := tr.Send(context.Background(), sub, models.Notification{
				Title:     "New message from Azz",
				Body:      "hi",
				Timestamp: time.Now(),
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, pkg.ErrSubscriberGone); got != tt.wantGone {
				t.Errorf("gone = %v, want %v", got, tt.wantGone)
			}
			if gotHeaders.Get("Content-Encoding") != "aes128gcm" {
				t.Errorf("Content-Encoding = %q", gotHeaders.Get("Content-Encoding"))
			}
			if !strings.HasPrefix(gotHeaders.Get("Authorization"), "vapid ") {
				t.Errorf("Authorization = %q", gotHeaders.Get("Authorization"))
			}
		})
	}
}

func TestTransport_SendWithoutKeys(t *testing.T) {
	tr := newTestTransport(t)
	err := tr.Send(context.Background(), models.Subscriber{Endpoint: "https://push.example.com/x"}, models.Notification{})
	if !errors.Is(err, pkg.ErrSubscriberGone) {
		t.Fatalf("expected ErrSubscriberGone, got %v", err)
	}
}
