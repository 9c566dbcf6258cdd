package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akinalp/duet/models"
	"github.com/akinalp/duet/pkg"
	"github.com/akinalp/duet/pkg/cache"
	"github.com/akinalp/duet/pkg/i18n"
	"github.com/akinalp/duet/repository"
)

// sendTimeout, tek bir subscriber'a gönderimin üst sınırı. Yavaş bir transport
// sadece kendi worker'ını bekletir, mesaj akışını değil.
const sendTimeout = 10 * time.Second

// NotificationTransport, bildirimi dış kanala (Telegram, Web Push, e-posta)
// ileten adapter. Kalıcı hata (abonelik artık geçersiz) pkg.ErrSubscriberGone
// ile wrap edilmelidir; dispatcher o subscriber'ı registry'den siler.
type NotificationTransport interface {
	Name() string
	Send(ctx context.Context, sub models.Subscriber, n models.Notification) error
}

// OnlineChecker, kullanıcının şu an odada olup olmadığını söyler.
// PresenceService bu interface'i karşılar.
type OnlineChecker interface {
	IsOnline(username string) bool
}

// NotificationOptions, dispatcher ayarları.
type NotificationOptions struct {
	SkipOnline bool          // odada olan kullanıcılara bildirim gitmez
	Cooldown   time.Duration // 0 ise kapalı
	// Preview açıksa username'e bağlı aboneler yazar adını ve metnin başını
	// görür. Kapalıyken (varsayılan) bildirim içeriksizdir.
	Preview   bool
	QueueSize int
	Locale    string
	// Static, registry dışında her zaman hedeflenen subscriber'lar
	// (e-posta alıcıları config'ten gelir, diske yazılmaz).
	Static []models.Subscriber
}

// NotificationService, yeni mesaj bildirimlerini abonelere dağıtır.
//
// Enqueue fire-and-forget giriş noktasıdır: mesaj buffer'lı kuyruğa girer,
// tek worker goroutine gönderir. Kuyruk doluysa bildirim düşürülür; mesaj
// akışı hiçbir zaman bildirim yüzünden beklemez.
type NotificationService interface {
	Enqueue(msg models.Message)
	NotifyNewMessage(ctx context.Context, msg models.Message) int
	Subscribe(ctx context.Context, sub models.Subscriber) error
	Unsubscribe(ctx context.Context, endpoint string) bool
	Subscribers() []models.Subscriber
	Run(ctx context.Context)
	Close()
	Flush(ctx context.Context) error
}

type notificationService struct {
	subscriberRepo repository.SubscriberRepository
	transport      NotificationTransport
	online         OnlineChecker
	opts           NotificationOptions
	localizer      *i18n.Localizer
	cooldown       *cache.TTLCache[string, time.Time]
	log            *zap.Logger
	now            func() time.Time

	queue     chan models.Message
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.RWMutex
	subs models.SubscriberList
}

// NewNotificationService, registry'yi yükler. transport nil ise dispatcher
// pasiftir: registry çalışır ama hiçbir şey gönderilmez.
func NewNotificationService(
	ctx context.Context,
	subscriberRepo repository.SubscriberRepository,
	transport NotificationTransport,
	online OnlineChecker,
	opts NotificationOptions,
	log *zap.Logger,
) (NotificationService, error) {
	subs, err := subscriberRepo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}

	s := &notificationService{
		subscriberRepo: subscriberRepo,
		transport:      transport,
		online:         online,
		opts:           opts,
		localizer:      i18n.NewLocalizer(opts.Locale),
		log:            log.Named("notify"),
		now:            time.Now,
		queue:          make(chan models.Message, opts.QueueSize),
		done:           make(chan struct{}),
		subs:           dedupeSubscribers(subs),
	}
	if opts.Cooldown > 0 {
		s.cooldown = cache.New[string, time.Time](opts.Cooldown, time.Minute)
	}

	transportName := "none"
	if transport != nil {
		transportName = transport.Name()
	}
	s.log.Info("notification dispatcher ready",
		zap.String("transport", transportName),
		zap.Int("subscribers", len(s.subs)),
		zap.Int("static", len(opts.Static)),
	)
	return s, nil
}

// dedupeSubscribers, aynı endpoint'in birden fazla kaydı varsa sonuncusunu tutar.
func dedupeSubscribers(subs models.SubscriberList) models.SubscriberList {
	out := make(models.SubscriberList, 0, len(subs))
	for _, sub := range subs {
		if i := slices.IndexFunc(out, func(s models.Subscriber) bool { return s.Endpoint == sub.Endpoint }); i >= 0 {
			out[i] = sub
			continue
		}
		out = append(out, sub)
	}
	return out
}

func (s *notificationService) Enqueue(msg models.Message) {
	if s.transport == nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- msg:
	default:
		s.log.Warn("notification queue full, dropping", zap.String("message_id", msg.ID))
	}
}

// Run, kuyruğu ctx iptal edilene veya Close çağrılana kadar işler.
func (s *notificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.queue:
			s.safeNotify(ctx, msg)
		}
	}
}

// safeNotify, transport'taki bir panic'in worker'ı öldürmesini engeller.
func (s *notificationService) safeNotify(ctx context.Context, msg models.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in notification worker", zap.Any("panic", r), zap.String("message_id", msg.ID))
		}
	}()
	s.NotifyNewMessage(ctx, msg)
}

// NotifyNewMessage, mesajı yazar hariç tüm abonelere gönderir ve başarılı
// teslim sayısını döner. Hatalar loglanır, yukarı taşınmaz.
func (s *notificationService) NotifyNewMessage(ctx context.Context, msg models.Message) int {
	if s.transport == nil {
		return 0
	}

	targets := s.targets(msg.Username)
	if len(targets) == 0 {
		return 0
	}

	generic := s.genericNotification(msg)
	preview := s.previewNotification(msg)
	delivered := 0

	for _, sub := range targets {
		if s.cooldown != nil {
			if _, cooling := s.cooldown.Get(sub.Endpoint); cooling {
				s.log.Debug("subscriber in cooldown", zap.String("endpoint", redact(sub.Endpoint)))
				continue
			}
		}

		// Username'e bağlı olmayan kayıt kimin olduğu doğrulanmamış bir
		// hedeftir; asla içerik görmez.
		n := generic
		if s.opts.Preview && sub.Username != "" {
			n = preview
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.transport.Send(sendCtx, sub, n)
		cancel()

		switch {
		case err == nil:
			delivered++
			if s.cooldown != nil {
				s.cooldown.Set(sub.Endpoint, s.now())
			}
		case errors.Is(err, pkg.ErrSubscriberGone):
			s.log.Info("subscriber gone, unregistering",
				zap.String("endpoint", redact(sub.Endpoint)),
				zap.Error(err),
			)
			s.Unsubscribe(ctx, sub.Endpoint)
		default:
			s.log.Warn("notification delivery failed",
				zap.String("transport", s.transport.Name()),
				zap.String("endpoint", redact(sub.Endpoint)),
				zap.Error(err),
			)
		}
	}

	s.log.Debug("notification fan-out done",
		zap.String("message_id", msg.ID),
		zap.Int("targets", len(targets)),
		zap.Int("delivered", delivered),
	)
	return delivered
}

// targets, yazarın kendisini ve (SkipOnline ise) odadaki kullanıcıları çıkarır.
// Username'i olmayan kayıtlar (eski Telegram chat id'leri) hedef kalır ama
// sadece içeriksiz bildirim alır.
func (s *notificationService) targets(author string) []models.Subscriber {
	s.mu.RLock()
	all := make([]models.Subscriber, 0, len(s.subs)+len(s.opts.Static))
	all = append(all, s.subs...)
	s.mu.RUnlock()
	all = append(all, s.opts.Static...)

	out := all[:0]
	for _, sub := range all {
		if sub.Username != "" {
			if sub.Username == author {
				continue
			}
			if s.opts.SkipOnline && s.online != nil && s.online.IsOnline(sub.Username) {
				continue
			}
		}
		out = append(out, sub)
	}
	return out
}

// genericNotification, yazar ve içerik taşımayan bildirim.
func (s *notificationService) genericNotification(msg models.Message) models.Notification {
	return models.Notification{
		Title:     s.localizer.T("notify.generic"),
		URL:       "/",
		Timestamp: msg.Timestamp,
	}
}

func (s *notificationService) previewNotification(msg models.Message) models.Notification {
	body := models.Truncate(msg.Text, models.PreviewRunes)
	if body == "" && msg.Media != nil {
		body = s.localizer.T("notify.media")
	}

	return models.Notification{
		Title:     s.localizer.TWithParams("notify.title", map[string]string{"username": msg.Username}),
		Body:      body,
		Author:    msg.Username,
		MessageID: msg.ID,
		URL:       "/",
		Timestamp: msg.Timestamp,
	}
}

// Subscribe, endpoint'e göre upsert eder (last-write-wins) ve diske yazar.
func (s *notificationService) Subscribe(ctx context.Context, sub models.Subscriber) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", pkg.ErrBadRequest)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.IndexFunc(s.subs, func(x models.Subscriber) bool { return x.Endpoint == sub.Endpoint }); i >= 0 {
		s.subs[i] = sub
	} else {
		s.subs = append(s.subs, sub)
	}
	s.persistLocked(ctx)
	return nil
}

func (s *notificationService) Unsubscribe(ctx context.Context, endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.subs, func(x models.Subscriber) bool { return x.Endpoint == endpoint })
	if i < 0 {
		return false
	}
	s.subs = slices.Delete(s.subs, i, i+1)
	if s.cooldown != nil {
		s.cooldown.Delete(endpoint)
	}
	s.persistLocked(ctx)
	return true
}

func (s *notificationService) Subscribers() []models.Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.subs)
}

// Close, worker'ı durdurur. Kuyrukta kalan bildirimler gönderilmez.
func (s *notificationService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.cooldown != nil {
			s.cooldown.Close()
		}
	})
}

func (s *notificationService) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriberRepo.Save(ctx, slices.Clone(s.subs))
}

func (s *notificationService) persistLocked(ctx context.Context) {
	if err := s.subscriberRepo.Save(ctx, slices.Clone(s.subs)); err != nil {
		s.log.Error("failed to persist subscribers", zap.Error(err))
	}
}

// redact, push endpoint URL'lerini loglarken sonunu kırpar; endpoint bir
// bearer capability gibidir.
func redact(endpoint string) string {
	const keep = 24
	if len(endpoint) <= keep {
		return endpoint
	}
	return endpoint[:keep] + "..."
}
