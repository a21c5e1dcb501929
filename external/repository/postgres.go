package repository

import (
	"context"

	"github.com/foxseedlab/yomiagen/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) InsertUtterance(ctx context.Context, input repository.InsertUtteranceInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO utterances (guild_id, user_id, fingerprint, content, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.GuildID, input.UserID, int64(input.Fingerprint), input.Content, input.SpokenAt)
	return err
}

func (r *PostgresRepository) CountUtterancesByGuild(ctx context.Context, guildID string) (int64, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM utterances WHERE guild_id = $1`,
		guildID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
