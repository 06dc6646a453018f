// Package broadcast fans a promoted link out to every approved group,
// consuming one promotion share per broadcast.
package broadcast

import "time"

// Broadcast is one delivered promotion message.
type Broadcast struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"` // group the link was delivered to
	Link      string    `db:"link"`
	UserID    int64     `db:"user_id"` // promoter
	CreatedAt time.Time `db:"created_at"`
}
