package store

import "context"

// SnapshotStore persists the set of opted-in users for one community so
// opt-in state survives a restart. Persistence is best-effort
// durability, not a transactional requirement.
type SnapshotStore interface {
	// Load returns the persisted user ids. A missing snapshot is an
	// empty set, not an error; a malformed or unreadable snapshot is.
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, userIDs []string) error
}

// Factory builds the store for one community's cache directory.
type Factory func(cacheDir string) SnapshotStore
