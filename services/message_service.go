package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/repository"
)

// MediaReclaimer, silinen mesajların dosyalarını diskten kaldırır.
// UploadService bu interface'i karşılar.
type MediaReclaimer interface {
	Remove(publicPath string) error
}

// MessageService, mesaj log'unun tek sahibidir: ekleme, okundu bilgisi,
// yanıt doğrulama, expiry sweep ve temizleme. Log'u başka hiçbir component
// değiştiremez.
//
// Her mutasyon koleksiyonun tamamını senkron olarak diske yazar; yazma hatası
// loglanır ve bellekteki state otorite olarak kalır.
//
// Dönen mesajlar her zaman kopyadır (Clone); çağıran taraf iç state'i değiştiremez.
type MessageService interface {
	Append(ctx context.Context, author string, req models.NewMessageRequest) (models.Message, error)
	MarkRead(ctx context.Context, messageID, reader string) (models.Message, bool)
	MarkAllUnreadOnLogin(ctx context.Context, reader string) []models.Message
	AutoMarkRead(ctx context.Context, messageID string, online []string) (models.Message, bool)
	SweepExpired(ctx context.Context, now time.Time) []models.Message
	ClearAll(ctx context.Context) int
	Delete(ctx context.Context, messageID, requester string) (models.Message, error)
	ReplyPreview(messageID string) (*models.ReplyPreview, error)
	Messages() []models.Message
	Flush(ctx context.Context) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	reclaimer   MediaReclaimer
	expiry      time.Duration
	log         *zap.Logger
	now         func() time.Time
	newID       func() string

	mu       sync.Mutex
	messages []models.Message
}

// NewMessageService, log'u repository'den yükler.
func NewMessageService(
	ctx context.Context,
	messageRepo repository.MessageRepository,
	reclaimer MediaReclaimer,
	expiry time.Duration,
	log *zap.Logger,
) (MessageService, error) {
	msgs, err := messageRepo.Load(ctx)
	if err != nil {
		return nil, err
	}

	s := &messageService{
		messageRepo: messageRepo,
		reclaimer:   reclaimer,
		expiry:      expiry,
		log:         log.Named("message"),
		now:         time.Now,
		newID:       newMessageID,
		messages:    msgs,
	}
	s.log.Info("message log hydrated", zap.Int("count", len(msgs)))
	return s, nil
}

// newMessageID, UUIDv7 üretir: ilk 48 bit milisaniye zaman damgası, geri kalanı
// rastgele. Aynı milisaniyede üretilen iki id de farklıdır ve sıralanabilir.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *messageService) Append(ctx context.Context, author string, req models.NewMessageRequest) (models.Message, error) {
	if err := req.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}
	if req.Media != nil {
		if err := ValidateMedia(req.Media); err != nil {
			return models.Message{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var reply *models.ReplyRef
	if req.ReplyTo != "" {
		parent := s.findLocked(req.ReplyTo)
		if parent == nil || parent.Expired(now, s.expiry) {
			return models.Message{}, fmt.Errorf("%w: parent %s missing or expired", pkg.ErrInvalidReply, req.ReplyTo)
		}
		reply = &models.ReplyRef{MessageID: parent.ID, Preview: parent.Preview()}
	}

	msg := models.Message{
		ID:        s.newID(),
		Username:  author,
		Text:      req.Text,
		Timestamp: now,
		Type:      models.MessageTypeText,
		ReadBy:    []string{},
		ReplyTo:   reply,
	}
	if req.Media != nil {
		media := *req.Media
		msg.Media = &media
		msg.Type = models.MessageTypeMedia
	}

	s.messages = append(s.messages, msg)
	s.persistLocked(ctx)

	return msg.Clone(), nil
}

func (s *messageService) MarkRead(ctx context.Context, messageID, reader string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findLocked(messageID)
	if msg == nil || !msg.AddReader(reader) {
		return models.Message{}, false
	}
	s.persistLocked(ctx)
	return msg.Clone(), true
}

// MarkAllUnreadOnLogin, "gelişte okundu" semantiği: odaya giren kullanıcı
// mevcut tüm mesajları görmüş sayılır. Sadece değişen mesajlar döner; tek yazma.
func (s *messageService) MarkAllUnreadOnLogin(ctx context.Context, reader string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []models.Message
	for i := range s.messages {
		if s.messages[i].AddReader(reader) {
			changed = append(changed, s.messages[i].Clone())
		}
	}
	if len(changed) > 0 {
		s.persistLocked(ctx)
	}
	return changed
}

// AutoMarkRead, mesaj eklendiği anda odada olan diğer kullanıcıları okuyucu
// olarak işaretler. Bildirim adımından önce çalışır.
func (s *messageService) AutoMarkRead(ctx context.Context, messageID string, online []string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findLocked(messageID)
	if msg == nil {
		return models.Message{}, false
	}

	changed := false
	for _, u := range online {
		if msg.AddReader(u) {
			changed = true
		}
	}
	if !changed {
		return models.Message{}, false
	}
	s.persistLocked(ctx)
	return msg.Clone(), true
}

// SweepExpired, yaşı expiry'ye eşit veya büyük mesajları siler ve dosyalarını
// geri alır. Silinen mesajları döner.
func (s *messageService) SweepExpired(ctx context.Context, now time.Time) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.Message
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.Expired(now, s.expiry) {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	if len(removed) == 0 {
		return nil
	}

	// kept, s.messages'in alt dizisini paylaşır; kuyruktaki eski referansları temizle.
	clear(s.messages[len(kept):])
	s.messages = kept

	s.reclaimLocked(removed)
	s.persistLocked(ctx)
	s.log.Info("expired messages swept", zap.Int("removed", len(removed)), zap.Int("remaining", len(kept)))
	return removed
}

func (s *messageService) ClearAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.messages)
	removed := s.messages
	s.messages = []models.Message{}
	s.reclaimLocked(removed)
	s.persistLocked(ctx)
	return count
}

// Delete, tek bir mesajı siler. Sadece yazarı silebilir.
func (s *messageService) Delete(ctx context.Context, messageID, requester string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.messages, func(m models.Message) bool { return m.ID == messageID })
	if idx < 0 {
		return models.Message{}, fmt.Errorf("%w: message %s", pkg.ErrNotFound, messageID)
	}
	msg := s.messages[idx]
	if msg.Username != requester {
		return models.Message{}, fmt.Errorf("%w: only the author can delete a message", pkg.ErrForbidden)
	}

	s.messages = slices.Delete(s.messages, idx, idx+1)
	s.reclaimLocked([]models.Message{msg})
	s.persistLocked(ctx)
	return msg.Clone(), nil
}

// ReplyPreview, get_reply_preview için parent'ın güncel özetini döner.
// Mesaj yoksa veya expire olduysa ErrNotFound.
func (s *messageService) ReplyPreview(messageID string) (*models.ReplyPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findLocked(messageID)
	if msg == nil || msg.Expired(s.now(), s.expiry) {
		return nil, fmt.Errorf("%w: message %s", pkg.ErrNotFound, messageID)
	}
	return msg.Preview(), nil
}

func (s *messageService) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *messageService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageRepo.Save(ctx, s.messages)
}

// ─── Helpers ───

func (s *messageService) findLocked(id string) *models.Message {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return &s.messages[i]
		}
	}
	return nil
}

// reclaimLocked, silinmiş mesajların dosyaları için silme isteği gönderir.
// Log'da kalan bir mesaj aynı path'i hâlâ kullanıyorsa dosyaya dokunulmaz;
// bu yüzden msgs s.messages'tan çıkarıldıktan sonra çağrılmalıdır.
// Hata sadece loglanır; dosya zaten yoksa sorun değil.
func (s *messageService) reclaimLocked(msgs []models.Message) {
	if s.reclaimer == nil {
		return
	}

	inUse := make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		if m.Media != nil {
			inUse[m.Media.Path] = struct{}{}
		}
	}

	for _, m := range msgs {
		if m.Media == nil || m.Media.Path == "" {
			continue
		}
		if _, ok := inUse[m.Media.Path]; ok {
			continue
		}
		inUse[m.Media.Path] = struct{}{}
		if err := s.reclaimer.Remove(m.Media.Path); err != nil {
			s.log.Warn("failed to reclaim media", zap.String("path", m.Media.Path), zap.Error(err))
		}
	}
}

func (s *messageService) persistLocked(ctx context.Context) {
	if err := s.messageRepo.Save(ctx, s.messages); err != nil {
		s.log.Error("failed to persist messages", zap.Error(err))
	}
}
