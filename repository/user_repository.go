package repository

import (
	"context"

	"github.com/akinalp/duet/models"
)

// UserRepository, yetkili kullanıcı listesi (allow-list).
// Runtime'da değişmez; startup'ta okunur, shutdown'da son kez yazılır.
type UserRepository interface {
	Load(ctx context.Context) (models.UserList, error)
	Save(ctx context.Context, users models.UserList) error
}

type userRepo struct {
	doc document[models.UserList]
}

// NewUserRepository, doküman yoksa defaults ile seed eden repository döner.
func NewUserRepository(store SnapshotStore, defaults []string) UserRepository {
	seed := make(models.UserList, 0, len(defaults))
	for _, name := range defaults {
		seed = append(seed, models.User{Username: name})
	}

	return &userRepo{doc: document[models.UserList]{
		store: store,
		name:  CollectionUsers,
		seed:  func() models.UserList { return seed },
	}}
}

func (r *userRepo) Load(ctx context.Context) (models.UserList, error) {
	return r.doc.load(ctx)
}

func (r *userRepo) Save(ctx context.Context, users models.UserList) error {
	return r.doc.save(ctx, users)
}
