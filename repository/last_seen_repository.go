package repository

import (
	"context"

	"github.com/akinalp/duet/models"
)

// LastSeenRepository, username → son görülme zamanı registry'si.
type LastSeenRepository interface {
	Load(ctx context.Context) (models.LastSeen, error)
	Save(ctx context.Context, seen models.LastSeen) error
}

type lastSeenRepo struct {
	doc document[models.LastSeen]
}

// NewLastSeenRepository, last_seen dokümanı üzerinde repository döner.
func NewLastSeenRepository(store SnapshotStore) LastSeenRepository {
	return &lastSeenRepo{doc: document[models.LastSeen]{
		store: store,
		name:  CollectionLastSeen,
		seed:  func() models.LastSeen { return models.LastSeen{} },
	}}
}

func (r *lastSeenRepo) Load(ctx context.Context) (models.LastSeen, error) {
	seen, err := r.doc.load(ctx)
	if err != nil {
		return nil, err
	}
	if seen == nil {
		seen = models.LastSeen{}
	}
	return seen, nil
}

func (r *lastSeenRepo) Save(ctx context.Context, seen models.LastSeen) error {
	return r.doc.save(ctx, seen)
}
