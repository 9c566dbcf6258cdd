package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/services"
)

// uploadFormField, client'ın dosyayı gönderdiği multipart alanı.
const uploadFormField = "media"

// multipartOverhead, boundary ve header'lar için dosya boyutunun üstüne
// tanınan pay.
const multipartOverhead = 1 << 20

// UploadHandler, POST /upload endpoint'i.
type UploadHandler struct {
	uploadService services.UploadService
	log           *zap.Logger
}

// NewUploadHandler, constructor.
func NewUploadHandler(uploadService services.UploadService, log *zap.Logger) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, log: log.Named("upload")}
}

// Upload godoc
// POST /upload
// Content-Type: multipart/form-data, alan: media
//
// Yanıt envelope'suz döner: {filename, originalName, size, path, type}.
// Client bu nesneyi new_message event'inin media alanına aynen koyar.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	maxSize := h.uploadService.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkg.Error(w, fmt.Errorf("%w: max %d MB", pkg.ErrUploadTooLarge, maxSize>>20))
			return
		}
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	media, err := h.uploadService.Save(file, header)
	if err != nil {
		h.log.Info("upload rejected", zap.String("username", username), zap.String("filename", header.Filename), zap.Error(err))
		pkg.Error(w, err)
		return
	}

	h.log.Info("file uploaded",
		zap.String("username", username),
		zap.String("filename", media.Filename),
		zap.Int64("size", media.Size),
		zap.String("type", media.MimeType),
	)
	pkg.RawJSON(w, http.StatusOK, media)
}
