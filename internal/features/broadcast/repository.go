package broadcast

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record logs one delivered broadcast.
func (r *Repository) Record(ctx context.Context, b *Broadcast) error {
	query := `
		INSERT INTO broadcasts (chat_id, link, user_id)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.Exec(ctx, query, b.ChatID, b.Link, b.UserID); err != nil {
		return fmt.Errorf("failed to record broadcast: %w", err)
	}
	return nil
}
