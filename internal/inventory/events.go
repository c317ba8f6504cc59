package inventory

import "time"

// DocumentCommittedEvent is published after a document's stock changes are
// persisted.
type DocumentCommittedEvent struct {
	DocumentID  int64
	Code        string
	Kind        Kind
	StoreID     int64
	Movements   []Movement
	CommittedAt time.Time
}
