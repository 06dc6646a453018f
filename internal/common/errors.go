// Package common — errors.go defines the sentinel errors shared by every
// feature. Handlers compare against these to pick the corrective message
// shown to the user instead of leaking internals.
package common

import "errors"

// Account ledger errors
var (
	// ErrInsufficientShares — debit attempted on an account with no shares left
	ErrInsufficientShares = errors.New("no promotion shares left")
	// ErrAccountNotFound — user has no account row yet
	ErrAccountNotFound = errors.New("account not found")
)

// Payment errors
var (
	// ErrInvalidPhone — phone is not a 12-digit 254-prefixed number
	ErrInvalidPhone = errors.New("phone must be in format 2547XXXXXXXX")
	// ErrInvalidAmount — amount is not one of the catalog denominations
	ErrInvalidAmount = errors.New("amount must be 20, 50 or 100")
	// ErrGatewayUnavailable — STK push could not be delivered after retries
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Access errors
var (
	// ErrNotAdmin — command is restricted to the configured admin set
	ErrNotAdmin = errors.New("admin access required")
	// ErrGroupOnly — command only makes sense inside a group chat
	ErrGroupOnly = errors.New("use this command in a group")
)
