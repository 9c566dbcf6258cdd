package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akinalp/duet/database"
)

// sqliteSnapshotStore, dokümanları snapshots tablosunda saklar.
// Her Save satırı üzerine yazar ve revision'ı bir artırır.
type sqliteSnapshotStore struct {
	db *database.DB
}

// NewSQLiteSnapshotStore, migration'ları uygulanmış bir DB üzerinde backend döner.
// Close çağrısı DB bağlantısını da kapatır.
func NewSQLiteSnapshotStore(db *database.DB) SnapshotStore {
	return &sqliteSnapshotStore{db: db}
}

func (s *sqliteSnapshotStore) Load(ctx context.Context, name string, v any) (bool, error) {
	var body string
	err := s.db.Conn.QueryRowContext(ctx,
		"SELECT body FROM snapshots WHERE name = ?", name,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return false, fmt.Errorf("corrupt snapshot row %s: %w", name, err)
	}
	return true, nil
}

func (s *sqliteSnapshotStore) Save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	_, err = s.db.Conn.ExecContext(ctx, `
		INSERT INTO snapshots (name, body) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			revision = snapshots.revision + 1,
			updated_at = CURRENT_TIMESTAMP`,
		name, string(body),
	)
	return err
}

func (s *sqliteSnapshotStore) Close() error {
	return s.db.Close()
}
