package repository

import (
	"context"
	"time"
)

type InsertUtteranceInput struct {
	GuildID     string
	UserID      string
	Fingerprint uint64
	Content     string
	SpokenAt    time.Time
}

// Repository keeps a history of spoken utterances. It is an optional
// audit trail; failures never block the speech path.
type Repository interface {
	InsertUtterance(ctx context.Context, input InsertUtteranceInput) error
	CountUtterancesByGuild(ctx context.Context, guildID string) (int64, error)
}
