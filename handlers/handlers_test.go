package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/repository"
	"github.com/akinalp/duet/services"
)

func uploadRequest(t *testing.T, field, filename string, content []byte, username string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if username != "" {
		req = req.WithContext(WithUsername(req.Context(), username))
	}
	return req
}

func newUploadHandler(t *testing.T, maxSize int64) (*UploadHandler, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := services.NewUploadService(dir, maxSize)
	if err != nil {
		t.Fatal(err)
	}
	return NewUploadHandler(svc, zaptest.NewLogger(t)), dir
}

func TestUpload_Success(t *testing.T) {
	h, dir := newUploadHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "media", "holiday.png", []byte("png-bytes"), "Azz"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var media models.Media
	if err := json.Unmarshal(rec.Body.Bytes(), &media); err != nil {
		t.Fatal(err)
	}
	if media.OriginalName != "holiday.png" || media.Size != 9 || media.MimeType != "image/png" {
		t.Errorf("media = %+v", media)
	}
	if !strings.HasPrefix(media.Path, "/uploads/") || !strings.HasSuffix(media.Filename, ".png") {
		t.Errorf("path = %q, filename = %q", media.Path, media.Filename)
	}
	if _, err := os.Stat(filepath.Join(dir, media.Filename)); err != nil {
		t.Errorf("file not written: %v", err)
	}
	// Yanıt envelope'suz olmalı.
	if strings.Contains(rec.Body.String(), `"success"`) {
		t.Errorf("upload response must not be wrapped: %s", rec.Body)
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		size     int
		username string
		want     int
	}{
		{"no ticket", "media", "a.png", 10, "", http.StatusUnauthorized},
		{"wrong field", "file", "a.png", 10, "Azz", http.StatusBadRequest},
		{"bad extension", "media", "run.exe", 10, "Azz", http.StatusUnsupportedMediaType},
		{"too large", "media", "big.mp4", 4096, "Azz", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newUploadHandler(t, 1024)
			rec := httptest.NewRecorder()
			h.Upload(rec, uploadRequest(t, tt.field, tt.filename, bytes.Repeat([]byte("x"), tt.size), tt.username))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func newSubscriptionHandler(t *testing.T, vapid string) (*SubscriptionHandler, services.NotificationService) {
	t.Helper()
	log := zaptest.NewLogger(t)
	store, err := repository.NewFileSnapshotStore(t.TempDir(), log)
	if err != nil {
		t.Fatal(err)
	}
	notifier, err := services.NewNotificationService(context.Background(),
		repository.NewSubscriberRepository(store), nil, nil, services.NotificationOptions{QueueSize: 1}, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(notifier.Close)
	return NewSubscriptionHandler(notifier, vapid, log), notifier
}

func jsonRequest(method, target, body, username string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req = req.WithContext(WithUsername(req.Context(), username))
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return out
}

func TestAddChatID(t *testing.T) {
	h, notifier := newSubscriptionHandler(t, "")

	for _, body := range []string{`{"chatId":"123456"}`, `{"chatId":123456}`, `{"chatId":-987}`} {
		rec := httptest.NewRecorder()
		h.AddChatID(rec, jsonRequest(http.MethodPost, "/add-chat-id", body, "Queen"))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body = %s", body, rec.Code, rec.Body)
		}
	}

	subs := notifier.Subscribers()
	if len(subs) != 2 {
		t.Fatalf("subscribers = %+v, want 2 (same id registered twice)", subs)
	}
	if subs[0].Endpoint != "123456" || subs[0].Username != "Queen" {
		t.Errorf("first subscriber = %+v", subs[0])
	}

	rec := httptest.NewRecorder()
	h.ListChatIDs(rec, httptest.NewRequest(http.MethodGet, "/chat-ids", nil))
	got := decodeBody(t, rec)
	if got["total"] != float64(2) {
		t.Errorf("chat-ids = %v", got)
	}
}

func TestAddChatID_Invalid(t *testing.T) {
	h, _ := newSubscriptionHandler(t, "")
	for _, body := range []string{`{}`, `{"chatId":"abc"}`, `{"chatId":"0"}`, `not json`} {
		rec := httptest.NewRecorder()
		h.AddChatID(rec, jsonRequest(http.MethodPost, "/add-chat-id", body, "Queen"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestVAPIDPublicKey(t *testing.T) {
	h, _ := newSubscriptionHandler(t, "BPublicKey")
	rec := httptest.NewRecorder()
	h.VAPIDPublicKey(rec, httptest.NewRequest(http.MethodGet, "/vapid-public-key", nil))
	if got := decodeBody(t, rec); got["publicKey"] != "BPublicKey" {
		t.Errorf("got %v", got)
	}

	h, _ = newSubscriptionHandler(t, "")
	rec = httptest.NewRecorder()
	h.VAPIDPublicKey(rec, httptest.NewRequest(http.MethodGet, "/vapid-public-key", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured status = %d", rec.Code)
	}
}

func TestSubscribe_BindsTicketUser(t *testing.T) {
	h, notifier := newSubscriptionHandler(t, "BPublicKey")

	body := `{"subscription":{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"pk","auth":"au"}},"username":"Mallory"}`
	rec := httptest.NewRecorder()
	h.Subscribe(rec, jsonRequest(http.MethodPost, "/subscribe", body, "Azz"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	subs := notifier.Subscribers()
	if len(subs) != 1 || subs[0].Username != "Azz" || subs[0].Keys == nil || subs[0].Keys.Auth != "au" {
		t.Fatalf("subscribers = %+v", subs)
	}

	rec = httptest.NewRecorder()
	h.ListSubscriptions(rec, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	if strings.Contains(rec.Body.String(), "p256dh") {
		t.Errorf("keys leaked: %s", rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Unsubscribe(rec, jsonRequest(http.MethodPost, "/unsubscribe", `{"endpoint":"https://push.example.com/abc"}`, "Azz"))
	if got := decodeBody(t, rec); got["removed"] != true {
		t.Errorf("unsubscribe = %v", got)
	}
	if len(notifier.Subscribers()) != 0 {
		t.Error("subscription not removed")
	}
}

func TestSubscribe_Validation(t *testing.T) {
	h, _ := newSubscriptionHandler(t, "BPublicKey")
	tests := map[string]string{
		"http endpoint": `{"subscription":{"endpoint":"http://push.example.com/abc","keys":{"p256dh":"pk","auth":"au"}}}`,
		"missing keys":  `{"subscription":{"endpoint":"https://push.example.com/abc"}}`,
		"empty body":    `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Subscribe(rec, jsonRequest(http.MethodPost, "/subscribe", body, "Azz"))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.Subscribe(rec, jsonRequest(http.MethodPost, "/subscribe", `{}`, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no ticket status = %d", rec.Code)
	}
}

type fixedStats int

func (s fixedStats) ConnectionCount() int { return int(s) }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(fixedStats(2), "telegram")
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	got := decodeBody(t, rec)
	data, _ := got["data"].(map[string]any)
	if got["success"] != true || data["status"] != "ok" || data["connections"] != float64(2) || data["notifications"] != "telegram" {
		t.Errorf("health = %v", got)
	}
}
