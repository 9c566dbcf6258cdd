package models

import "github.com/golang-jwt/jwt/v5"

// TicketClaims, join sonrası verilen session ticket'ın payload'ı.
//
// Subject (sub) kullanıcı adıdır. Ticket HTTP tarafında (/upload,
// subscription endpoint'leri) "bu istek kimden" sorusunu cevaplar;
// ws bağlantısı join ile zaten bağlıdır.
type TicketClaims struct {
	jwt.RegisteredClaims
}

// Username, ticket'ın sahibini döner.
func (c *TicketClaims) Username() string {
	return c.Subject
}
