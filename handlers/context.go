// Package handlers, HTTP endpoint'lerini barındırır.
//
// Handler'lar "thin"dir: request parse + service çağrısı + response yazımı.
// Sohbetin kendisi ws üzerinden akar; HTTP tarafı yükleme ve bildirim
// aboneliği gibi yan işler içindir.
package handlers

import (
	"context"
	"net/http"

	"github.com/akinalp/duet/pkg"
)

type contextKey string

// UsernameContextKey, ticket middleware'ının context'e koyduğu kullanıcı adı.
const UsernameContextKey contextKey = "username"

// WithUsername, username'i context'e ekler.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, UsernameContextKey, username)
}

// UsernameFrom, ticket middleware'ından geçmiş request'in kullanıcısını döner.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameContextKey).(string)
	return username, ok && username != ""
}

// requireUsername, kullanıcı yoksa 401 yazar ve false döner.
func requireUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := UsernameFrom(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return username, true
}
