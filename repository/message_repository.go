package repository

import (
	"context"

	"github.com/akinalp/duet/models"
)

// MessageRepository, mesaj log'unun kalıcı kopyası.
type MessageRepository interface {
	Load(ctx context.Context) ([]models.Message, error)
	Save(ctx context.Context, messages []models.Message) error
}

type messageRepo struct {
	doc document[[]models.Message]
}

// NewMessageRepository, mesajlar dokümanı üzerinde repository döner.
// Doküman yoksa boş liste ile oluşturulur.
func NewMessageRepository(store SnapshotStore) MessageRepository {
	return &messageRepo{doc: document[[]models.Message]{
		store: store,
		name:  CollectionMessages,
		seed:  func() []models.Message { return []models.Message{} },
	}}
}

func (r *messageRepo) Load(ctx context.Context) ([]models.Message, error) {
	msgs, err := r.doc.load(ctx)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (r *messageRepo) Save(ctx context.Context, messages []models.Message) error {
	if messages == nil {
		messages = []models.Message{}
	}
	return r.doc.save(ctx, messages)
}
