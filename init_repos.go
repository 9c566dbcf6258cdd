// Package main: persistence katmanı başlatma.
//
// initStore, STORE_DRIVER'a göre snapshot backend'ini açar; initRepositories
// dört koleksiyonun tipli repository'lerini aynı store üzerinde kurar.
package main

import (
	"context"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/akinalp/duet/config"
	"github.com/akinalp/duet/database"
	"github.com/akinalp/duet/repository"
)

// Repositories, tüm repository instance'larını tutan container struct.
type Repositories struct {
	Users       repository.UserRepository
	LastSeen    repository.LastSeenRepository
	Messages    repository.MessageRepository
	Subscribers repository.SubscriberRepository
}

// initStore, file veya sqlite backend'ini döner. sqlite'ta embedded
// migration'lar burada uygulanır.
func initStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (repository.SnapshotStore, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		db, err := database.New(ctx, cfg.SQLitePath, migrations, log)
		if err != nil {
			return nil, err
		}
		log.Info("snapshot store ready", zap.String("driver", cfg.Driver), zap.String("path", cfg.SQLitePath))
		return repository.NewSQLiteSnapshotStore(db), nil

	default:
		store, err := repository.NewFileSnapshotStore(cfg.DataDir, log)
		if err != nil {
			return nil, err
		}
		log.Info("snapshot store ready", zap.String("driver", cfg.Driver), zap.String("dir", cfg.DataDir))
		return store, nil
	}
}

func initRepositories(store repository.SnapshotStore, defaultUsers []string) *Repositories {
	return &Repositories{
		Users:       repository.NewUserRepository(store, defaultUsers),
		LastSeen:    repository.NewLastSeenRepository(store),
		Messages:    repository.NewMessageRepository(store),
		Subscribers: repository.NewSubscriberRepository(store),
	}
}
