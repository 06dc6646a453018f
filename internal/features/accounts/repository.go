// Package accounts — repository.go performs all operations on the users
// table. Balance mutations are single atomic statements: credits and
// debits race with each other (a gateway callback and a /promote can hit
// the same row concurrently), so there is no read-then-write anywhere.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"viralmusic.ke/promo-bot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ensure creates the account row with zero shares if it does not exist.
func (r *Repository) Ensure(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO users (user_id, unlocked, shares, quizzes_passed, promotions_used)
		VALUES ($1, FALSE, 0, FALSE, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// Get returns the account row, creating it lazily if absent.
func (r *Repository) Get(ctx context.Context, userID int64) (*Account, error) {
	if err := r.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, unlocked, shares, quizzes_passed, promotions_used, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`
	var a Account
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.Unlocked, &a.Shares,
		&a.QuizzesPassed, &a.PromotionsUsed, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read account (user_id=%d): %w", userID, err)
	}
	return &a, nil
}

// Credit adds shares to the account and flips unlocked and quizzes_passed.
// Either a quiz pass or a confirmed payment is sufficient proof of
// "unlocked" status, so one statement serves both paths. The upsert also
// covers users whose first ever interaction is the payment callback.
func (r *Repository) Credit(ctx context.Context, userID, shares int64) error {
	query := `
		INSERT INTO users (user_id, unlocked, shares, quizzes_passed, promotions_used)
		VALUES ($1, TRUE, $2, TRUE, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET unlocked = TRUE,
		    shares = users.shares + EXCLUDED.shares,
		    quizzes_passed = TRUE,
		    updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID, shares); err != nil {
		return fmt.Errorf("failed to credit %d shares (user_id=%d): %w", shares, userID, err)
	}
	return nil
}

// UseShare consumes one share and bumps the usage counter. The condition
// shares > 0 inside the statement is what keeps the balance non-negative
// under concurrent debits; zero rows affected means no shares left.
func (r *Repository) UseShare(ctx context.Context, userID int64) (bool, error) {
	query := `
		UPDATE users
		SET shares = shares - 1, promotions_used = promotions_used + 1, updated_at = NOW()
		WHERE user_id = $1 AND shares > 0
	`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to use share (user_id=%d): %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountUsers returns the total number of account rows.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// SumPromotionsUsed returns the total promotions consumed across all users.
func (r *Repository) SumPromotionsUsed(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(promotions_used), 0) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum promotions: %w", err)
	}
	return n, nil
}
