package models

import "fmt"

// Read-state field names, used both as persisted-key suffixes and as change
// event identifiers for cross-instance reconciliation.
const (
	ReadStateFieldRead           = "read_notifications"
	ReadStateFieldHidden         = "hidden_notifications"
	ReadStateFieldArchiveCleared = "archive_cleared_time"
)

// GuestUserKey namespaces state for sessions without an authenticated user.
const GuestUserKey = "guest"

// ReadStateKey builds the persisted key for one field of one user's state,
// e.g. campus_portal_read_notifications_1001.
func ReadStateKey(prefix, field, userID string) string {
	if userID == "" {
		userID = GuestUserKey
	}
	return fmt.Sprintf("%s_%s_%s", prefix, field, userID)
}

// ReadStateSnapshot is the wire shape of a user's persisted read-state.
// ReadIDs and HiddenIDs serialize as plain JSON number arrays under their
// own keys; ArchiveClearedAt is a unix-millisecond watermark.
type ReadStateSnapshot struct {
	ReadIDs          []int64 `json:"readIds"`
	HiddenIDs        []int64 `json:"hiddenIds"`
	ArchiveClearedAt int64   `json:"archiveClearedAt"`
}

// StateChange describes an externally observed mutation of a persisted key,
// as delivered by a StateStore watcher. Value holds the new serialized
// payload; consumers replace their local copy of the field, never merge.
// Origin identifies the writing session so it can ignore echoes of its own
// writes, the way browser storage events never fire in the originating tab.
type StateChange struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Origin string `json:"origin,omitempty"`
}
