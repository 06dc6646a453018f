// Package common contains small utilities used across the project:
// currency formatting, share pluralization and Nairobi-local time helpers.
package common

import (
	"fmt"
	"time"
)

// PluralizeShares returns the right form of "share" for n.
func PluralizeShares(n int64) string {
	if n == 1 || n == -1 {
		return "share"
	}
	return "shares"
}

// FormatShares formats a share balance into a readable string.
// Example: FormatShares(20) → "20 shares"
func FormatShares(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeShares(n))
}

// FormatKES formats an amount in Kenyan shillings.
// Example: FormatKES(50) → "KES 50"
func FormatKES(amount int64) string {
	return fmt.Sprintf("KES %d", amount)
}

// NairobiTime returns the current time in the Africa/Nairobi timezone.
// All payments are Kenyan; reports and digests use local time.
func NairobiTime() time.Time {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		// EAT has no DST, a fixed offset is equivalent
		loc = time.FixedZone("EAT", 3*60*60)
	}
	return time.Now().In(loc)
}

// FormatDateTime formats a time as "02.01.2006 15:04" in Nairobi local time.
func FormatDateTime(t time.Time) string {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		loc = time.FixedZone("EAT", 3*60*60)
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
