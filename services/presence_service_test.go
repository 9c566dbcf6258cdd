package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/repository"
)

func TestPresence_JoinAdmission(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ps := newTestPresence(t, newTestStore(t), clock)

	roster, err := ps.Join(ctx, "c1", "Azz")
	if err != nil {
		t.Fatalf("Azz join: %v", err)
	}
	if len(roster.Users) != 1 || roster.Users[0].Username != "Azz" {
		t.Fatalf("roster = %+v", roster.Users)
	}
	if roster.Users[0].Counterpart != "Queen" {
		t.Errorf("counterpart = %q, want Queen", roster.Users[0].Counterpart)
	}

	roster, err = ps.Join(ctx, "c2", "Queen")
	if err != nil {
		t.Fatalf("Queen join: %v", err)
	}
	if len(roster.Users) != 2 {
		t.Fatalf("roster size = %d, want 2", len(roster.Users))
	}

	// İkinci bir "Azz" bağlantısı: oda dolu olduğu için önce RoomFull gelir.
	if _, err := ps.Join(ctx, "c3", "Azz"); !errors.Is(err, pkg.ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}

	if _, err := ps.Join(ctx, "c4", "Mallory"); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPresence_UsernameTaken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc, err := NewPresenceService(ctx,
		repository.NewUserRepository(store, []string{"Azz", "Queen"}),
		repository.NewLastSeenRepository(store),
		3,
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("NewPresenceService: %v", err)
	}

	if _, err := svc.Join(ctx, "c1", "Azz"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Join(ctx, "c2", "Queen"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Join(ctx, "c3", "Azz"); !errors.Is(err, pkg.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestPresence_RosterInvariantUnderRandomJoins(t *testing.T) {
	ctx := context.Background()
	ps := newTestPresence(t, newTestStore(t), newFakeClock(), "Azz", "Queen", "Third")

	names := []string{"Azz", "Queen", "Third", "Azz", "Nobody", "Queen"}
	for i := 0; i < 30; i++ {
		conn := fmt.Sprintf("c%d", i%5)
		if i%3 == 0 {
			ps.Leave(ctx, conn)
			continue
		}
		_, _ = ps.Join(ctx, conn, names[i%len(names)])

		roster := ps.Roster()
		if len(roster.Users) > ps.maxSessions {
			t.Fatalf("roster exceeded capacity: %d", len(roster.Users))
		}
		seen := map[string]bool{}
		for _, u := range roster.Users {
			if seen[u.Username] {
				t.Fatalf("duplicate username %q in roster", u.Username)
			}
			seen[u.Username] = true
		}
	}
}

func TestPresence_LeaveAndLastSeen(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t)
	ps := newTestPresence(t, store, clock)

	if _, err := ps.Join(ctx, "c1", "Azz"); err != nil {
		t.Fatal(err)
	}
	if _, err := ps.Join(ctx, "c2", "Queen"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Minute)
	res, ok := ps.Leave(ctx, "c2")
	if !ok {
		t.Fatal("Leave returned false for bound connection")
	}
	if res.Username != "Queen" || res.Duration != 10*time.Minute {
		t.Errorf("leave result = %+v", res)
	}
	disconnectAt := clock.Now()
	if got := res.Roster.AllUserLastSeen["Queen"]; !got.Equal(disconnectAt) {
		t.Errorf("Queen last seen = %v, want %v", got, disconnectAt)
	}
	if ps.IsOnline("Queen") {
		t.Error("Queen should be offline")
	}

	// Kalıcı: yeni bir servis aynı last-seen'i okur.
	seen, err := repository.NewLastSeenRepository(store).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !seen["Queen"].Equal(disconnectAt) {
		t.Errorf("persisted last seen = %v", seen["Queen"])
	}

	clock.Advance(time.Minute)
	roster, err := ps.Join(ctx, "c3", "Queen")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	for _, u := range roster.Users {
		if u.LastSeen != nil {
			t.Errorf("online user %q must not carry lastSeen", u.Username)
		}
	}
	if !ps.IsOnline("Queen") {
		t.Error("Queen should be online again")
	}
}

func TestPresence_AnonymousLeaveIsNoop(t *testing.T) {
	ps := newTestPresence(t, newTestStore(t), newFakeClock())
	if res, ok := ps.Leave(context.Background(), "never-joined"); ok || res != nil {
		t.Errorf("expected silent no-op, got %+v %v", res, ok)
	}
}

func TestPresence_OnlineUsernames(t *testing.T) {
	ctx := context.Background()
	ps := newTestPresence(t, newTestStore(t), newFakeClock())
	_, _ = ps.Join(ctx, "c1", "Azz")
	_, _ = ps.Join(ctx, "c2", "Queen")

	got := ps.OnlineUsernames("Azz")
	if len(got) != 1 || got[0] != "Queen" {
		t.Errorf("OnlineUsernames(Azz) = %v", got)
	}
	if name, ok := ps.Username("c1"); !ok || name != "Azz" {
		t.Errorf("Username(c1) = %q, %v", name, ok)
	}
}
