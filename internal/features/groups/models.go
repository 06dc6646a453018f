// Package groups is the registry of broadcast targets: group chats an
// admin has approved for promotion fan-out.
package groups

import "time"

// Group is one approved broadcast target, keyed by chat id.
type Group struct {
	ChatID    int64     `db:"chat_id"`
	Title     string    `db:"title"`
	Username  string    `db:"username"` // empty for private groups
	AddedBy   int64     `db:"added_by"` // user who registered the group
	CreatedAt time.Time `db:"created_at"`
}
