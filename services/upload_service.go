package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
)

// UploadPathPrefix, yüklenen dosyaların public URL öneki.
const UploadPathPrefix = "/uploads/"

// UploadService, multipart dosyayı doğrulayıp diske yazar ve medya
// tanımını (path/size/mime) üretir. MediaReclaimer olarak mesaj silinince
// dosyayı kaldırır.
type UploadService interface {
	Save(file multipart.File, header *multipart.FileHeader) (*models.Media, error)
	Remove(publicPath string) error
	MaxSize() int64
}

type uploadService struct {
	uploadDir string
	maxSize   int64
	now       func() time.Time
}

// NewUploadService, upload dizinini (yoksa) oluşturur.
func NewUploadService(uploadDir string, maxSize int64) (UploadService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &uploadService{uploadDir: uploadDir, maxSize: maxSize, now: time.Now}, nil
}

// allowedExtensions, izin verilen uzantılar ve Content-Type gelmezse
// kullanılacak varsayılan MIME tipi. Sistem mime tablosuna güvenilmez;
// minimal container'larda /etc/mime.types olmayabilir.
var allowedExtensions = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// allowedMimeTypes, izin verilen MIME tipleri. Tarayıcılar aynı format için
// farklı tipler gönderebildiği için (audio/wav, audio/x-wav) alias'lar da var.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"video/mp4":          true,
	"video/quicktime":    true,
	"video/x-msvideo":    true,
	"video/avi":          true,
	"video/webm":         true,
	"video/ogg":          true,
	"audio/webm":         true,
	"audio/ogg":          true,
	"application/ogg":    true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/m4a":   true,
}

// Save, boyut + uzantı + MIME kontrolünden sonra dosyayı
// <unixMillis>-<random><ext> adıyla yazar.
func (s *uploadService) Save(file multipart.File, header *multipart.FileHeader) (*models.Media, error) {
	if header.Size > s.maxSize {
		return nil, fmt.Errorf("%w: max %d MB", pkg.ErrUploadTooLarge, s.maxSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: extension %q not allowed", pkg.ErrUploadRejected, ext)
	}

	mimeType := detectMimeType(header, ext)
	if !allowedMimeTypes[mimeType] {
		return nil, fmt.Errorf("%w: type %q not allowed", pkg.ErrUploadRejected, mimeType)
	}

	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("failed to generate filename: %w", err)
	}
	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), hex.EncodeToString(random), ext)

	dest := filepath.Join(s.uploadDir, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// header.Size client beyanıdır; gerçek kopyayı da sınırla.
	written, err := io.Copy(out, io.LimitReader(file, s.maxSize+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(dest)
		return nil, fmt.Errorf("%w: max %d MB", pkg.ErrUploadTooLarge, s.maxSize>>20)
	}

	return &models.Media{
		Filename:     name,
		OriginalName: sanitizeFilename(header.Filename),
		Size:         written,
		Path:         UploadPathPrefix + name,
		MimeType:     mimeType,
	}, nil
}

// Remove, public path'ten (/uploads/x.png) dosyayı siler. Upload dizini
// dışına çıkan path'ler reddedilir; zaten silinmiş dosya hata değildir.
func (s *uploadService) Remove(publicPath string) error {
	name := path.Base(publicPath)
	if !strings.HasPrefix(publicPath, UploadPathPrefix) || name == "." || name == "/" || name == ".." {
		return fmt.Errorf("%w: not an upload path: %q", pkg.ErrBadRequest, publicPath)
	}

	err := os.Remove(filepath.Join(s.uploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ValidateMedia, new_message ile gelen medya tanımının upload servisinin
// üretebileceği bir tanım olduğunu doğrular. Path silme işlemlerine gittiği
// için client'ın beyanına güvenilmez.
func ValidateMedia(m *models.Media) error {
	name := m.Filename
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid media filename %q", pkg.ErrBadRequest, name)
	}
	if m.Path != UploadPathPrefix+name {
		return fmt.Errorf("%w: media path %q does not match filename", pkg.ErrBadRequest, m.Path)
	}
	if m.Size < 0 {
		return fmt.Errorf("%w: negative media size", pkg.ErrBadRequest)
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
		return fmt.Errorf("%w: media extension not allowed", pkg.ErrUploadRejected)
	}
	if !allowedMimeTypes[strings.ToLower(m.MimeType)] {
		return fmt.Errorf("%w: media type %q not allowed", pkg.ErrUploadRejected, m.MimeType)
	}
	return nil
}

func (s *uploadService) MaxSize() int64 {
	return s.maxSize
}

// detectMimeType, part header'ındaki Content-Type'ı kullanır; yoksa veya
// generic ise uzantının varsayılan tipine düşer.
func detectMimeType(header *multipart.FileHeader, ext string) string {
	base, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || base == "" || base == "application/octet-stream" {
		return allowedExtensions[ext]
	}
	return strings.ToLower(base)
}

// sanitizeFilename, orijinal adı gösterim için temizler (path traversal,
// kontrol karakterleri).
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\x00' || r < 0x20 {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}
