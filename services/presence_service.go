package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/repository"
)

// PresenceService, oda kabul kontrolü (admission) ve canlı roster.
//
// Bir bağlantı Join ile bir kullanıcıya bağlanır. Kurallar sırasıyla:
//  1. kullanıcı allow-list'te olmalı (ErrUnauthorized)
//  2. bağlı session sayısı maxSessions'ın altında olmalı (ErrRoomFull)
//  3. aynı kullanıcıya bağlı başka session olmamalı (ErrUsernameTaken)
//
// Her başarılı Join/Leave last-seen registry'sini günceller ve diske yazar.
type PresenceService interface {
	Join(ctx context.Context, connID, username string) (models.Roster, error)
	Leave(ctx context.Context, connID string) (*models.LeaveResult, bool)
	Roster() models.Roster
	Username(connID string) (string, bool)
	OnlineUsernames(excluding string) []string
	IsOnline(username string) bool
	IsAuthorized(username string) bool
	AuthorizedUsernames() []string
	MaxSessions() int
	LastSeen() models.LastSeen
	Flush(ctx context.Context) error
}

type presenceService struct {
	userRepo     repository.UserRepository
	lastSeenRepo repository.LastSeenRepository
	log          *zap.Logger
	maxSessions  int
	now          func() time.Time

	mu         sync.RWMutex
	authorized []string
	sessions   []models.Session // join sırasıyla; en fazla maxSessions eleman
	lastSeen   models.LastSeen
}

// NewPresenceService, allow-list'i ve last-seen registry'sini yükler.
func NewPresenceService(
	ctx context.Context,
	userRepo repository.UserRepository,
	lastSeenRepo repository.LastSeenRepository,
	maxSessions int,
	log *zap.Logger,
) (PresenceService, error) {
	users, err := userRepo.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen, err := lastSeenRepo.Load(ctx)
	if err != nil {
		return nil, err
	}

	s := &presenceService{
		userRepo:     userRepo,
		lastSeenRepo: lastSeenRepo,
		log:          log.Named("presence"),
		maxSessions:  maxSessions,
		now:          time.Now,
		authorized:   users.Usernames(),
		lastSeen:     seen,
	}
	s.log.Info("presence hydrated",
		zap.Strings("authorized", s.authorized),
		zap.Int("max_sessions", maxSessions),
	)
	return s, nil
}

func (s *presenceService) Join(ctx context.Context, connID, username string) (models.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.authorized, username) {
		return models.Roster{}, fmt.Errorf("%w: %q is not on the allow-list", pkg.ErrUnauthorized, username)
	}
	if len(s.sessions) >= s.maxSessions {
		return models.Roster{}, fmt.Errorf("%w: %d/%d sessions bound", pkg.ErrRoomFull, len(s.sessions), s.maxSessions)
	}
	for _, sess := range s.sessions {
		if sess.Username == username {
			return models.Roster{}, fmt.Errorf("%w: %q", pkg.ErrUsernameTaken, username)
		}
		if sess.ConnID == connID {
			return models.Roster{}, fmt.Errorf("%w: connection already joined as %q", pkg.ErrBadRequest, sess.Username)
		}
	}

	now := s.now()
	s.sessions = append(s.sessions, models.Session{ConnID: connID, Username: username, JoinedAt: now})
	s.lastSeen[username] = now
	s.persistLocked(ctx)

	return s.rosterLocked(), nil
}

func (s *presenceService) Leave(ctx context.Context, connID string) (*models.LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sessions, func(sess models.Session) bool { return sess.ConnID == connID })
	if idx < 0 {
		// Join olmamış bağlantı: sessiz no-op.
		return nil, false
	}

	sess := s.sessions[idx]
	s.sessions = slices.Delete(s.sessions, idx, idx+1)

	now := s.now()
	s.lastSeen[sess.Username] = now
	s.persistLocked(ctx)

	return &models.LeaveResult{
		Username: sess.Username,
		Duration: now.Sub(sess.JoinedAt),
		Roster:   s.rosterLocked(),
	}, true
}

func (s *presenceService) Roster() models.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rosterLocked()
}

// rosterLocked, user_list_update payload'ını üretir.
// Online kullanıcılar için lastSeen gönderilmez; allUserLastSeen tüm registry'dir.
func (s *presenceService) rosterLocked() models.Roster {
	users := make([]models.RosterEntry, 0, len(s.sessions))
	for _, sess := range s.sessions {
		users = append(users, models.RosterEntry{
			Username:    sess.Username,
			Status:      models.StatusOnline,
			JoinedAt:    sess.JoinedAt,
			Counterpart: s.counterpartLocked(sess.Username),
		})
	}

	return models.Roster{
		Users:           users,
		AllUserLastSeen: s.lastSeen.Clone(),
		AuthorizedUsers: slices.Clone(s.authorized),
	}
}

// counterpartLocked, username olmayan ilk yetkili kullanıcı.
// İki kişilik odada bu "karşı taraf"tır.
func (s *presenceService) counterpartLocked(username string) string {
	for _, u := range s.authorized {
		if u != username {
			return u
		}
	}
	return ""
}

func (s *presenceService) Username(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ConnID == connID {
			return sess.Username, true
		}
	}
	return "", false
}

func (s *presenceService) OnlineUsernames(excluding string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Username != excluding {
			names = append(names, sess.Username)
		}
	}
	return names
}

func (s *presenceService) IsOnline(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.ContainsFunc(s.sessions, func(sess models.Session) bool { return sess.Username == username })
}

func (s *presenceService) IsAuthorized(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.authorized, username)
}

func (s *presenceService) AuthorizedUsernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.authorized)
}

func (s *presenceService) MaxSessions() int {
	return s.maxSessions
}

func (s *presenceService) LastSeen() models.LastSeen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen.Clone()
}

// Flush, shutdown'da allow-list'i ve last-seen'i son kez yazar. Hâlâ bağlı
// kullanıcıların zamanı "şimdi" olarak işaretlenir; process kapanınca hepsi
// offline olur.
func (s *presenceService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(models.UserList, 0, len(s.authorized))
	for _, name := range s.authorized {
		users = append(users, models.User{Username: name})
	}
	if err := s.userRepo.Save(ctx, users); err != nil {
		return err
	}

	now := s.now()
	for _, sess := range s.sessions {
		s.lastSeen[sess.Username] = now
	}
	return s.lastSeenRepo.Save(ctx, s.lastSeen.Clone())
}

// persistLocked, last-seen'i yazar. Yazma hatası loglanır ama yutulur:
// bellekteki state process için otoritedir.
func (s *presenceService) persistLocked(ctx context.Context) {
	if err := s.lastSeenRepo.Save(ctx, s.lastSeen.Clone()); err != nil {
		s.log.Error("failed to persist last seen", zap.Error(err))
	}
}
