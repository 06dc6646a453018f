// Package filters holds the access rules applied before commands are
// routed: the admin allow-list and chat-type gating.
package filters

// AdminFilter answers whether a user is in the configured admin set.
type AdminFilter struct {
	ids map[int64]struct{}
}

func NewAdminFilter(adminIDs []int64) *AdminFilter {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &AdminFilter{ids: ids}
}

func (f *AdminFilter) IsAdmin(userID int64) bool {
	_, ok := f.ids[userID]
	return ok
}
