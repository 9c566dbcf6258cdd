package services

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
)

const ticketIssuer = "duet"

// TicketService, join sonrası verilen session ticket'larını üretir ve doğrular.
//
// Ticket HS256 imzalı bir JWT'dir, sub = username. ws bağlantısı join ile
// kimliğini zaten bilir; ticket HTTP endpoint'lerinin (/upload,
// /subscribe, ...) aynı kullanıcıyı tanıması içindir.
type TicketService interface {
	Issue(username string) (string, error)
	Validate(token string) (*models.TicketClaims, error)
}

type ticketService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTicketService, imza anahtarını secret'tan HKDF-SHA256 ile türetir.
// Ham secret doğrudan HMAC anahtarı olarak kullanılmaz; uzunluğu ve
// entropisi ne olursa olsun anahtar 32 byte olur.
func NewTicketService(secret string, ttl time.Duration) (TicketService, error) {
	if secret == "" {
		return nil, fmt.Errorf("ticket secret is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("duet session ticket v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive ticket key: %w", err)
	}

	return &ticketService{key: key, ttl: ttl, now: time.Now}, nil
}

func (s *ticketService) Issue(username string) (string, error) {
	now := s.now()
	claims := &models.TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    ticketIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

func (s *ticketService) Validate(tokenString string) (*models.TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TicketClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithIssuer(ticketIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ticket", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TicketClaims)
	if !ok || !token.Valid || claims.Username() == "" {
		return nil, fmt.Errorf("%w: invalid ticket claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}
