package repository

import (
	"context"

	"github.com/akinalp/duet/models"
)

// SubscriberRepository, bildirim abonelik registry'si.
type SubscriberRepository interface {
	Load(ctx context.Context) (models.SubscriberList, error)
	Save(ctx context.Context, subs models.SubscriberList) error
}

type subscriberRepo struct {
	doc document[models.SubscriberList]
}

// NewSubscriberRepository, subscribers dokümanı üzerinde repository döner.
func NewSubscriberRepository(store SnapshotStore) SubscriberRepository {
	return &subscriberRepo{doc: document[models.SubscriberList]{
		store: store,
		name:  CollectionSubscribers,
		seed:  func() models.SubscriberList { return models.SubscriberList{} },
	}}
}

func (r *subscriberRepo) Load(ctx context.Context) (models.SubscriberList, error) {
	subs, err := r.doc.load(ctx)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = models.SubscriberList{}
	}
	return subs, nil
}

func (r *subscriberRepo) Save(ctx context.Context, subs models.SubscriberList) error {
	if subs == nil {
		subs = models.SubscriberList{}
	}
	return r.doc.save(ctx, subs)
}
