// Package accounts is the account ledger: the per-user balance of unlocked
// promotion shares and its usage counters. It is the only mutator of a
// user's share balance — both the quiz reward and payment reconciliation
// credit through here, and promotion broadcasts debit through here.
package accounts

import "time"

// Account is one user's share balance row. Created lazily on first
// interaction with zero shares; never deleted.
type Account struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`         // Telegram user ID
	Unlocked       bool      `db:"unlocked"`        // has ever passed the quiz or paid
	Shares         int64     `db:"shares"`          // available promotion shares, never negative
	QuizzesPassed  bool      `db:"quizzes_passed"`  // quiz completed at least once
	PromotionsUsed int64     `db:"promotions_used"` // monotonic usage counter
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
