package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/duet/handlers"
	"github.com/akinalp/duet/services"
)

type allowList map[string]bool

func (a allowList) IsAuthorized(username string) bool { return a[username] }

func TestTicketMiddleware(t *testing.T) {
	tickets, err := services.NewTicketService("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	valid, err := tickets.Issue("Azz")
	if err != nil {
		t.Fatal(err)
	}
	removed, err := tickets.Issue("Ghost")
	if err != nil {
		t.Fatal(err)
	}
	other, _ := services.NewTicketService("other-secret", time.Hour)
	foreign, _ := other.Issue("Azz")

	mw := NewTicketMiddleware(tickets, allowList{"Azz": true, "Queen": true}, zaptest.NewLogger(t))

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = handlers.UsernameFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.Require(next)

	tests := []struct {
		name   string
		header string
		want   int
		user   string
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent, "Azz"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"garbage", "Bearer not-a-ticket", http.StatusUnauthorized, ""},
		{"foreign key", "Bearer " + foreign, http.StatusUnauthorized, ""},
		{"no longer authorized", "Bearer " + removed, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/upload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if seen != tt.user {
				t.Errorf("username = %q, want %q", seen, tt.user)
			}
		})
	}
}
