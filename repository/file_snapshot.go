package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/moby/sys/atomicwriter"
	"go.uber.org/zap"
)

// legacyFilenames, eski dağıtımlardaki dosya adları. Yeni ad yoksa bunlar okunur;
// ilk Save yeni adla yazar.
var legacyFilenames = map[string]string{
	CollectionSubscribers: "telegram_chat_ids.json",
}

// fileSnapshotStore, her koleksiyonu dir/<ad>.json olarak saklar.
//
// Yazma atomiktir: atomicwriter önce aynı dizinde geçici dosyaya yazar,
// fsync eder, sonra rename ile yerine koyar. Yazma ortasında çöken process
// yarım bir JSON bırakmaz.
type fileSnapshotStore struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// NewFileSnapshotStore, dizini (yoksa) oluşturur ve file backend'i döner.
func NewFileSnapshotStore(dir string, log *zap.Logger) (SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &fileSnapshotStore{dir: dir, log: log.Named("store")}, nil
}

func (s *fileSnapshotStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *fileSnapshotStore) Load(_ context.Context, name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		legacy, ok := legacyFilenames[name]
		if !ok {
			return false, nil
		}
		path = filepath.Join(s.dir, legacy)
		data, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err == nil {
			s.log.Info("reading legacy snapshot", zap.String("collection", name), zap.String("file", legacy))
		}
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		// Bozuk dosyayı kenara al, koleksiyon seed ile yeniden başlasın.
		// In-memory state process için otoritedir; veri kaybını loglamak yeterli.
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return false, fmt.Errorf("corrupt snapshot %s: %w", path, err)
		}
		s.log.Error("corrupt snapshot quarantined",
			zap.String("collection", name),
			zap.String("moved_to", quarantine),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *fileSnapshotStore) Save(_ context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicwriter.WriteFile(s.path(name), data, 0o644)
}

func (s *fileSnapshotStore) Close() error { return nil }
