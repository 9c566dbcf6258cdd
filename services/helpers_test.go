package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg/i18n"
	"github.com/akinalp/duet/repository"
)

func TestMain(m *testing.M) {
	if err := i18n.LoadEmbedded(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestStore, geçici dizinde dosya tabanlı snapshot store açar.
func newTestStore(t *testing.T) repository.SnapshotStore {
	t.Helper()
	store, err := repository.NewFileSnapshotStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileSnapshotStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fakeClock, testlerde zamanı elle ilerletmek için.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingReclaimer, silme isteklerini kaydeder.
type recordingReclaimer struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingReclaimer) Remove(publicPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, publicPath)
	return nil
}

// uploadedMedia, upload servisinin döndüğü şekilde geçerli bir medya tanımı.
func uploadedMedia(name, mimeType string) *models.Media {
	return &models.Media{Filename: name, OriginalName: name, Size: 128, Path: UploadPathPrefix + name, MimeType: mimeType}
}

func (r *recordingReclaimer) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func newTestPresence(t *testing.T, store repository.SnapshotStore, clock *fakeClock, users ...string) *presenceService {
	t.Helper()
	if len(users) == 0 {
		users = []string{"Azz", "Queen"}
	}
	svc, err := NewPresenceService(context.Background(),
		repository.NewUserRepository(store, users),
		repository.NewLastSeenRepository(store),
		2,
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("NewPresenceService: %v", err)
	}
	ps := svc.(*presenceService)
	ps.now = clock.Now
	return ps
}

func newTestMessages(t *testing.T, store repository.SnapshotStore, clock *fakeClock, reclaimer MediaReclaimer) *messageService {
	t.Helper()
	svc, err := NewMessageService(context.Background(),
		repository.NewMessageRepository(store),
		reclaimer,
		24*time.Hour,
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("NewMessageService: %v", err)
	}
	ms := svc.(*messageService)
	ms.now = clock.Now
	return ms
}

func textMessage(text string) models.NewMessageRequest {
	return models.NewMessageRequest{Text: text}
}
