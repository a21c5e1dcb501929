package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/foxseedlab/yomiagen/internal/store"
)

const snapshotFilename = "users.json"

// FileStore keeps one users.json per community: a JSON array of the
// currently opted-in user ids. Expiry is not recorded; users are
// reloaded with a fresh full TTL on startup.
type FileStore struct {
	path string
}

func NewFileStore(cacheDir string) store.SnapshotStore {
	return &FileStore{path: filepath.Join(cacheDir, snapshotFilename)}
}

func (s *FileStore) Load(_ context.Context) ([]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var userIDs []string
	if err := json.Unmarshal(b, &userIDs); err != nil {
		return nil, fmt.Errorf("snapshot %s is malformed: %w", s.path, err)
	}
	return userIDs, nil
}

func (s *FileStore) Save(_ context.Context, userIDs []string) error {
	if userIDs == nil {
		userIDs = []string{}
	}
	b, err := json.Marshal(userIDs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	// Write-then-rename so a crash mid-write never truncates the
	// snapshot a later bootstrap depends on.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
