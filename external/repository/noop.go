package repository

import (
	"context"

	"github.com/foxseedlab/yomiagen/internal/repository"
)

// NoopRepository is used when no DATABASE_URL is configured; utterance
// history is simply not kept.
type NoopRepository struct{}

func NewNoopRepository() repository.Repository {
	return &NoopRepository{}
}

func (r *NoopRepository) InsertUtterance(_ context.Context, _ repository.InsertUtteranceInput) error {
	return nil
}

func (r *NoopRepository) CountUtterancesByGuild(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
