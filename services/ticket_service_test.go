package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/akinalp/duet/pkg"
)

func TestTicket_IssueAndValidate(t *testing.T) {
	svc, err := NewTicketService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTicketService: %v", err)
	}

	token, err := svc.Issue("Azz")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("not a JWT: %q", token)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Username() != "Azz" {
		t.Errorf("username = %q", claims.Username())
	}
}

func TestTicket_Rejections(t *testing.T) {
	clock := newFakeClock()
	svc, _ := NewTicketService("test-secret", time.Hour)
	svc.(*ticketService).now = clock.Now

	token, _ := svc.Issue("Queen")

	other, _ := NewTicketService("other-secret", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("foreign key: expected ErrUnauthorized, got %v", err)
	}

	if _, err := svc.Validate(token + "x"); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("tampered: expected ErrUnauthorized, got %v", err)
	}

	if _, err := svc.Validate("garbage"); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("garbage: expected ErrUnauthorized, got %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := svc.Validate(token); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("expired: expected ErrUnauthorized, got %v", err)
	}
}

func TestTicket_EmptySecret(t *testing.T) {
	if _, err := NewTicketService("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
