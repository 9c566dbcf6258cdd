// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Error'lar sabit değişkenlerdir; karşılaştırma string ile değil errors.Is ile yapılır:
//
//	if errors.Is(err, pkg.ErrRoomFull) { ... }
//
// Service katmanı bunları fmt.Errorf("%w: ...") ile wrap edip döner,
// HTTP handler'lar status code'a, EventRouter ise ws rejection event'ine çevirir.
package pkg

import "errors"

// Genel error'lar.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// Sohbet çekirdeğinin hata taksonomisi.
//
// Join hataları (Unauthorized / RoomFull / UsernameTaken) sadece o denemeyi
// sonlandırır; bağlantı açık kalır ve client tekrar deneyebilir.
var (
	ErrRoomFull       = errors.New("room full")
	ErrUsernameTaken  = errors.New("username taken")
	ErrInvalidReply   = errors.New("invalid reply")
	ErrUploadRejected = errors.New("upload rejected")
	ErrUploadTooLarge = errors.New("upload too large")
	ErrRateLimited    = errors.New("rate limited")
)

// ErrSubscriberGone, notification transport'unun kalıcı hata sinyalidir
// (Telegram 403 / chat not found, Web Push 404 / 410).
// Dispatcher bu error'u gördüğünde subscriber'ı registry'den siler.
var ErrSubscriberGone = errors.New("subscriber gone")
