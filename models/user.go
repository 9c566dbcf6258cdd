package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// User, izin listesindeki (allow-list) bir kullanıcı.
// Runtime'da kayıt yoktur; liste startup'ta snapshot'tan bir kez yüklenir.
type User struct {
	Username string `json:"username"`
}

// UserList, users.json dokümanı.
//
// Eski dosyalarda kayıtlar çıplak string olabilir (["Azz","Queen"]);
// UnmarshalJSON ikisini de kabul eder.
type UserList []User

// UnmarshalJSON, hem [{"username":"x"}] hem ["x"] biçimini okur.
func (l *UserList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(UserList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var name string
			if err := json.Unmarshal(item, &name); err != nil {
				return err
			}
			out = append(out, User{Username: name})
			continue
		}
		var u User
		if err := json.Unmarshal(item, &u); err != nil {
			return err
		}
		out = append(out, u)
	}
	*l = out
	return nil
}

// Usernames, listedeki kullanıcı adlarını sırasıyla döner.
func (l UserList) Usernames() []string {
	names := make([]string, 0, len(l))
	for _, u := range l {
		if u.Username != "" {
			names = append(names, u.Username)
		}
	}
	return names
}

// LastSeen, username → son join/disconnect zamanı.
// Diskte ISO-8601 string map'i olarak saklanır.
type LastSeen map[string]time.Time

// Clone, map'in kopyasını döner.
func (l LastSeen) Clone() LastSeen {
	out := make(LastSeen, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
