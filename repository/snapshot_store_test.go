package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/duet/database"
	"github.com/akinalp/duet/models"
)

// backends, aynı testleri iki backend üzerinde koşturur.
func backends(t *testing.T) map[string]SnapshotStore {
	t.Helper()
	log := zaptest.NewLogger(t)

	fileStore, err := NewFileSnapshotStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "duet.db"), nil, log)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	sqliteStore := NewSQLiteSnapshotStore(db)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]SnapshotStore{"file": fileStore, "sqlite": sqliteStore}
}

func TestMessageRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewMessageRepository(store)

			msgs, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if msgs == nil || len(msgs) != 0 {
				t.Fatalf("fresh store should seed an empty log, got %#v", msgs)
			}

			in := []models.Message{
				{ID: "a", Username: "Azz", Text: "hi", Timestamp: ts, Type: models.MessageTypeText, ReadBy: []string{"Queen"}},
				{ID: "b", Username: "Queen", Timestamp: ts, Type: models.MessageTypeMedia, ReadBy: []string{},
					Media:   &models.Media{Filename: "x.png", OriginalName: "x.png", Size: 3, Path: "/uploads/x.png", MimeType: "image/png"},
					ReplyTo: &models.ReplyRef{MessageID: "a", Preview: &models.ReplyPreview{Username: "Azz", Preview: "hi", Timestamp: ts}}},
			}
			if err := repo.Save(ctx, in); err != nil {
				t.Fatalf("Save: %v", err)
			}

			out, err := NewMessageRepository(store).Load(ctx)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if len(out) != 2 || out[0].ReadBy[0] != "Queen" || out[1].ReplyTo.Preview.Preview != "hi" || out[1].Media.MimeType != "image/png" {
				t.Fatalf("round trip mismatch: %#v", out)
			}
		})
	}
}

func TestUserRepositorySeedsDefaults(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			users, err := NewUserRepository(store, []string{"Azz", "Queen"}).Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := strings.Join(users.Usernames(), ","); got != "Azz,Queen" {
				t.Fatalf("users = %q", got)
			}

			// Seed kalıcı olmalı: farklı default'larla açılış mevcut dokümanı okur.
			users, err = NewUserRepository(store, []string{"Other"}).Load(ctx)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if got := strings.Join(users.Usernames(), ","); got != "Azz,Queen" {
				t.Fatalf("seed was not persisted, got %q", got)
			}
		})
	}
}

func TestLastSeenRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewLastSeenRepository(store)
			if err := repo.Save(ctx, models.LastSeen{"Queen": ts}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			seen, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !seen["Queen"].Equal(ts) {
				t.Fatalf("last seen = %v", seen)
			}
		})
	}
}

func TestFileStoreReadsLegacyChatIDs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "telegram_chat_ids.json"), []byte(`["111", "222"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewFileSnapshotStore(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	subs, err := NewSubscriberRepository(store).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(subs) != 2 || subs[0].Endpoint != "111" || subs[1].Endpoint != "222" {
		t.Fatalf("legacy chat ids not converted: %#v", subs)
	}
}

func TestFileStoreQuarantinesCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "messages.json"), []byte(`[{"id": "a",`), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewFileSnapshotStore(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := NewMessageRepository(store).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected fresh log, got %d messages", len(msgs))
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "messages.json.corrupt-*"))
	if len(matches) != 1 {
		t.Fatalf("corrupt file not quarantined: %v", matches)
	}
}

func TestFileStoreWritesPrettyJSON(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), CollectionLastSeen, map[string]string{"Azz": "x"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "last_seen.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"Azz\": \"x\"\n}" {
		t.Fatalf("unexpected file body: %q", data)
	}
}
