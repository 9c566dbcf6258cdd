// Package repository, kalıcı state'in okunup yazıldığı katmandır.
//
// Sohbetin dört koleksiyonu (mesajlar, yetkili kullanıcılar, last-seen,
// bildirim abonelikleri) tek parça JSON doküman olarak saklanır. Servisler
// state'i bellekte tutar, her mutasyondan sonra koleksiyonun tamamını Save ile
// üzerine yazar. Backend ya düz dosya (file_snapshot.go) ya da SQLite
// (sqlite_snapshot.go) olabilir; servisler sadece SnapshotStore'u görür.
package repository

import (
	"context"
	"fmt"
)

// Koleksiyon adları. file backend'de dosya adı <ad>.json olur.
const (
	CollectionMessages    = "messages"
	CollectionUsers       = "users"
	CollectionLastSeen    = "last_seen"
	CollectionSubscribers = "subscribers"
)

// SnapshotStore, koleksiyon başına tek doküman okuyan/yazan backend.
//
// Load doküman yoksa (false, nil) döner. Save dokümanın tamamını yazar;
// kısmi güncelleme yoktur.
type SnapshotStore interface {
	Load(ctx context.Context, name string, v any) (found bool, err error)
	Save(ctx context.Context, name string, v any) error
	Close() error
}

// document, tipli bir koleksiyonun ortak load/seed/save mantığı.
// Doküman yoksa seed değeri hemen diske yazılır; böylece ilk çalıştırmadan
// sonra dosya her zaman vardır.
type document[T any] struct {
	store SnapshotStore
	name  string
	seed  func() T
}

func (d *document[T]) load(ctx context.Context) (T, error) {
	var v T
	found, err := d.store.Load(ctx, d.name, &v)
	if err != nil {
		return v, fmt.Errorf("failed to load %s: %w", d.name, err)
	}
	if found {
		return v, nil
	}

	v = d.seed()
	if err := d.store.Save(ctx, d.name, v); err != nil {
		return v, fmt.Errorf("failed to seed %s: %w", d.name, err)
	}
	return v, nil
}

func (d *document[T]) save(ctx context.Context, v T) error {
	if err := d.store.Save(ctx, d.name, v); err != nil {
		return fmt.Errorf("failed to save %s: %w", d.name, err)
	}
	return nil
}
