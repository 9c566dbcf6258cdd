// Package middleware, HTTP request pipeline'ına eklenen ara katmanları barındırır.
//
// Middleware bir fonksiyondur: func(next http.Handler) http.Handler.
// Kendi işini yapar (ör: ticket doğrula), sonra next'i çağırır; hata varsa
// next'i çağırmaz ve request burada durur.
package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/akinalp/duet/handlers"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/services"
)

// TicketAuthorizer, ticket'ın sahibinin hâlâ yetkili olup olmadığını söyler.
// PresenceService bu interface'i karşılar.
type TicketAuthorizer interface {
	IsAuthorized(username string) bool
}

// TicketMiddleware, join sonrası verilen session ticket'ını doğrular.
type TicketMiddleware struct {
	tickets    services.TicketService
	authorizer TicketAuthorizer
	log        *zap.Logger
}

// NewTicketMiddleware, constructor.
func NewTicketMiddleware(tickets services.TicketService, authorizer TicketAuthorizer, log *zap.Logger) *TicketMiddleware {
	return &TicketMiddleware{tickets: tickets, authorizer: authorizer, log: log.Named("auth")}
}

// Require, geçerli ticket zorunlu kılar. Header formatı: Authorization: Bearer <ticket>
//
// Ticket geçerliyse kullanıcı adı context'e konur; handler'lar
// handlers.UsernameFrom ile okur.
func (m *TicketMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <ticket>")
			return
		}

		claims, err := m.tickets.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			m.log.Debug("ticket rejected", zap.String("path", r.URL.Path), zap.Error(err))
			pkg.Error(w, err)
			return
		}

		// Allow-list değişmiş olabilir: ticket geçerli ama kullanıcı artık yok.
		username := claims.Username()
		if m.authorizer != nil && !m.authorizer.IsAuthorized(username) {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user is not authorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.WithUsername(r.Context(), username)))
	})
}
