package groups

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

// Upsert registers a group, refreshing title/handle on re-registration.
func (r *Repository) Upsert(ctx context.Context, g *Group) error {
	query := `
		INSERT INTO approved_groups (chat_id, title, username, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE
		SET title = EXCLUDED.title,
		    username = EXCLUDED.username,
		    added_by = EXCLUDED.added_by
	`
	if _, err := r.db.Exec(ctx, query, g.ChatID, g.Title, g.Username, g.AddedBy); err != nil {
		return fmt.Errorf("failed to register group: %w", err)
	}
	return nil
}

// List returns every approved group.
func (r *Repository) List(ctx context.Context) ([]*Group, error) {
	query := `
		SELECT chat_id, title, username, added_by, created_at
		FROM approved_groups
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ChatID, &g.Title, &g.Username, &g.AddedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group rows: %w", err)
	}
	return out, nil
}
