// Package payments — repository.go performs all operations on the payments
// table. The verify-and-credit path runs inside one database transaction
// guarded by the unique index on checkout_request_id: that single guard is
// what makes at-least-once callback delivery safe.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordPending inserts the pending payment row. Called BEFORE the gateway
// request so the correlation to the buyer survives a crash mid-initiation.
func (r *Repository) RecordPending(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, phone, amount, package, user_id, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Phone, p.Amount, p.Package, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to record pending payment: %w", err)
	}
	return nil
}

// AttachGatewayRefs stores the gateway's identifiers on the pending row
// once the initiation response arrives.
func (r *Repository) AttachGatewayRefs(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error {
	query := `
		UPDATE payments
		SET merchant_request_id = $2, checkout_request_id = $3
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, merchantRequestID, checkoutRequestID); err != nil {
		return fmt.Errorf("failed to attach gateway refs: %w", err)
	}
	return nil
}

// FindUserByCheckoutID resolves the owner of a pending payment from the
// gateway's checkout reference. Returns found=false when no row matches
// (refs lost to a crash between RecordPending and AttachGatewayRefs).
func (r *Repository) FindUserByCheckoutID(ctx context.Context, checkoutRequestID string) (int64, bool, error) {
	var userID int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM payments WHERE checkout_request_id = $1`, checkoutRequestID,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up payment by checkout id: %w", err)
	}
	return userID, true, nil
}

// VerifiedPayment is everything VerifyAndCredit needs to settle a callback.
type VerifiedPayment struct {
	PaymentID         string // uuid for the insert path (no pending row found)
	CheckoutRequestID string
	MerchantRequestID string
	UserID            int64
	Phone             string
	Amount            int64
	Package           string
	Shares            int64
	Receipt           string
}

// VerifyAndCredit settles a confirmed payment as one atomic unit:
//
//  1. transition the pending row to verified, keyed by the gateway's
//     checkout reference;
//  2. if no pending row exists, insert a verified row directly — the
//     unique index on checkout_request_id rejects redelivered callbacks;
//  3. credit the buyer's account in the same transaction.
//
// Returns credited=false when the callback was already processed; the
// caller treats that as a no-op success, not an error.
func (r *Repository) VerifyAndCredit(ctx context.Context, v VerifiedPayment) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'verified', phone = $2, amount = $3, package = $4, receipt = $5
		WHERE checkout_request_id = $1 AND status = 'pending'
	`, v.CheckoutRequestID, v.Phone, v.Amount, v.Package, v.Receipt)
	if err != nil {
		return false, fmt.Errorf("failed to verify payment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// No pending row: either the record was never persisted with
		// refs, or this is a redelivery. The unique index decides.
		tag, err = tx.Exec(ctx, `
			INSERT INTO payments (id, phone, amount, package, user_id, status,
			                      merchant_request_id, checkout_request_id, receipt)
			VALUES ($1, $2, $3, $4, $5, 'verified', $6, $7, $8)
			ON CONFLICT (checkout_request_id) DO NOTHING
		`, v.PaymentID, v.Phone, v.Amount, v.Package, v.UserID,
			v.MerchantRequestID, v.CheckoutRequestID, v.Receipt)
		if err != nil {
			return false, fmt.Errorf("failed to insert verified payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// already processed
			return false, nil
		}
	}

	// Credit inside the same transaction so a crash between the status
	// transition and the credit cannot lose paid-for shares.
	_, err = tx.Exec(ctx, `
		INSERT INTO users (user_id, unlocked, shares, quizzes_passed, promotions_used)
		VALUES ($1, TRUE, $2, TRUE, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET unlocked = TRUE,
		    shares = users.shares + EXCLUDED.shares,
		    quizzes_passed = TRUE,
		    updated_at = NOW()
	`, v.UserID, v.Shares)
	if err != nil {
		return false, fmt.Errorf("failed to credit shares: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit verification: %w", err)
	}
	return true, nil
}

// MarkFailed transitions a pending payment to failed after a business
// decline (nonzero ResultCode). Redeliveries are harmless: the row is no
// longer pending, so the update touches nothing.
func (r *Repository) MarkFailed(ctx context.Context, checkoutRequestID string) error {
	query := `
		UPDATE payments
		SET status = 'failed'
		WHERE checkout_request_id = $1 AND status = 'pending'
	`
	if _, err := r.db.Exec(ctx, query, checkoutRequestID); err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// AggregateStats returns the verified payment count and revenue.
func (r *Repository) AggregateStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE status = 'verified'
	`
	var s Stats
	if err := r.db.QueryRow(ctx, query).Scan(&s.VerifiedCount, &s.TotalAmount); err != nil {
		return nil, fmt.Errorf("failed to aggregate payment stats: %w", err)
	}
	return &s, nil
}
