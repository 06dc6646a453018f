// Package payments owns the payment ledger and the reconciliation of
// asynchronous gateway confirmations: every STK push initiation is recorded
// pending before the network call, and the callback credits the buyer's
// account exactly once.
package payments

import "time"

// Payment statuses. A record starts pending at initiation; reconciliation
// is the only writer that moves it to verified or failed. A payment the
// gateway abandons stays pending forever — that is an accepted terminal
// state, not an error.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Payment is one initiation attempt and its eventual outcome.
type Payment struct {
	ID                string    `db:"id"`                  // generated request id (uuid)
	Phone             string    `db:"phone"`               // payer phone, 2547XXXXXXXX
	Amount            int64     `db:"amount"`              // KES, one of the catalog denominations
	Package           string    `db:"package"`             // resolved package name
	UserID            int64     `db:"user_id"`             // owning Telegram user — the correlation target
	Status            string    `db:"status"`              // pending | verified | failed
	MerchantRequestID string    `db:"merchant_request_id"` // gateway ref, attached after initiation
	CheckoutRequestID string    `db:"checkout_request_id"` // gateway ref, the idempotency key
	Receipt           string    `db:"receipt"`             // M-Pesa receipt number, set at verification
	CreatedAt         time.Time `db:"created_at"`
}

// Stats is the aggregate used for admin reporting.
type Stats struct {
	VerifiedCount int64
	TotalAmount   int64 // KES, verified payments only
}

// Package is a static catalog entry mapping a price to a share quantity.
type Package struct {
	Name   string
	Price  int64 // KES
	Shares int64
}

// Catalog is the fixed three-tier package catalog. Read-only after the
// bootstrap seeding in the migrations.
var Catalog = []Package{
	{Name: "BASIC", Price: 20, Shares: 20},
	{Name: "PRO", Price: 50, Shares: 50},
	{Name: "VIP", Price: 100, Shares: 100},
}

// defaultShares is credited for paid amounts outside the catalog, so a
// customer who paid an unmapped amount is never left with nothing.
const defaultShares = 20

// ResolvePackage maps a paid amount to its package name and share
// quantity. Unrecognized amounts resolve to the synthetic "Custom" package
// with the default share quantity.
func ResolvePackage(amount int64) (string, int64) {
	for _, p := range Catalog {
		if p.Price == amount {
			return p.Name, p.Shares
		}
	}
	return "Custom", defaultShares
}

// CatalogAmount reports whether amount is one of the purchasable
// denominations. Used to validate /pay input before any network call.
func CatalogAmount(amount int64) bool {
	for _, p := range Catalog {
		if p.Price == amount {
			return true
		}
	}
	return false
}
