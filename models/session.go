package models

import "time"

// PresenceStatus, roster'daki bir kullanıcının durumu.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Session, bir canlı bağlantı. Username sadece başarılı join'den sonra dolar.
//
// ConnID transport'un verdiği opak id'dir (ws Hub'daki client id).
type Session struct {
	ConnID   string    `json:"-"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Bound, session'ın bir kullanıcıya bağlı olup olmadığını döner.
func (s *Session) Bound() bool {
	return s.Username != ""
}

// RosterEntry, user_list_update içindeki tek satır.
//
// LastSeen online kullanıcılar için gönderilmez (nil).
// Counterpart: bu kullanıcı olmayan diğer yetkili kullanıcı; client bunu
// "karşı taraf" başlığı için kullanır.
type RosterEntry struct {
	Username    string         `json:"username"`
	Status      PresenceStatus `json:"status"`
	JoinedAt    time.Time      `json:"joinedAt"`
	LastSeen    *time.Time     `json:"lastSeen,omitempty"`
	Counterpart string         `json:"otherUser,omitempty"`
}

// Roster, user_list_update payload'ı.
type Roster struct {
	Users           []RosterEntry `json:"users"`
	AllUserLastSeen LastSeen      `json:"allUserLastSeen"`
	AuthorizedUsers []string      `json:"authorizedUsers"`
}

// LeaveResult, bağlı bir session'ın kapanışı. Duration gözlemlenebilirlik içindir.
type LeaveResult struct {
	Username string
	Duration time.Duration
	Roster   Roster
}
