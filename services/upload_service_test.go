package services

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/akinalp/duet/pkg"
)

// multipartFile, verilen içerik ile "media" alanlı bir form parse edip
// handler'ın göreceği file/header çiftini döner.
func multipartFile(t *testing.T, filename, contentType string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("media")
	if err != nil {
		t.Fatalf("FormFile: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file, header
}

func TestUpload_Save(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewUploadService(dir, 1024)
	if err != nil {
		t.Fatal(err)
	}

	file, header := multipartFile(t, "holiday photo.png", "image/png", []byte("not really a png"))
	media, err := svc.Save(file, header)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !regexp.MustCompile(`^\d+-[0-9a-f]{12}\.png$`).MatchString(media.Filename) {
		t.Errorf("filename = %q", media.Filename)
	}
	if media.Path != UploadPathPrefix+media.Filename {
		t.Errorf("path = %q", media.Path)
	}
	if media.OriginalName != "holiday photo.png" || media.MimeType != "image/png" || media.Size != 16 {
		t.Errorf("media = %+v", media)
	}

	data, err := os.ReadFile(filepath.Join(dir, media.Filename))
	if err != nil || string(data) != "not really a png" {
		t.Errorf("stored file = %q, %v", data, err)
	}

	if err := svc.Remove(media.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, media.Filename)); !os.IsNotExist(err) {
		t.Error("file still exists after Remove")
	}
	if err := svc.Remove(media.Path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int
		want        error
	}{
		{"bad extension", "run.exe", "application/octet-stream", 10, pkg.ErrUploadRejected},
		{"bad mime", "notes.txt", "application/x-msdownload", 10, pkg.ErrUploadRejected},
		{"too large", "clip.mp4", "video/mp4", 2048, pkg.ErrUploadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			svc, _ := NewUploadService(dir, 1024)
			file, header := multipartFile(t, tt.filename, tt.contentType, bytes.Repeat([]byte("x"), tt.size))

			if _, err := svc.Save(file, header); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("rejected upload left %d files", len(entries))
			}
		})
	}
}

func TestUpload_MimeFallback(t *testing.T) {
	svc, _ := NewUploadService(t.TempDir(), 1024)
	file, header := multipartFile(t, "voice.m4a", "", []byte("abc"))
	media, err := svc.Save(file, header)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if media.MimeType != "audio/mp4" {
		t.Errorf("MimeType = %q", media.MimeType)
	}
}

func TestUpload_RemoveOutsideDir(t *testing.T) {
	svc, _ := NewUploadService(t.TempDir(), 1024)
	if err := svc.Remove("/etc/passwd"); !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		`C:\x\y.png`:       "y.png",
		"a\x00b.txt":       "ab.txt",
		"..":               "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
