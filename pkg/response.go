package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIResponse, tüm HTTP yanıtları için standart zarf (envelope).
//
// Upload endpoint'i buna istisna: eski client'lar {filename, path, ...}
// alanlarını doğrudan root'ta beklediği için RawJSON ile yazılır.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON, başarılı bir yanıtı envelope içinde gönderir.
func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

// RawJSON, envelope olmadan düz JSON yazar.
func RawJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// Error, domain error'ını uygun HTTP status code ile gönderir.
// 5xx durumunda iç detay client'a sızdırılmaz.
func Error(w http.ResponseWriter, err error) {
	status := mapErrorToStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = ErrInternal.Error()
	}
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// ErrorWithMessage, özel mesajlı hata yanıtı gönderir.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Error: message})
}

// DecodeJSON, request body'sini maxBytes sınırıyla decode eder.
// Bozuk body ErrBadRequest ile wrap edilir.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", ErrBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// StatusFor, error'un karşılık geldiği HTTP status code'u döner.
func StatusFor(err error) int {
	return mapErrorToStatus(err)
}

// mapErrorToStatus, errors.Is ile wrap edilmiş chain'i de kontrol eder.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUploadRejected):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidReply):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
