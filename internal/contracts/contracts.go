package contracts

import "time"

// Collection is the single flat collection this system persists.
const Collection = "events"

// EventFields is the stored field set of one event record. The record id is
// never stored as a field; the store assigns and owns it.
type EventFields struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Icon        string    `json:"icon"`
	Colour      string    `json:"colour"`
}

// EventRecord is one event as reported by the store.
type EventRecord struct {
	ID string `json:"id"`
	EventFields
}

// ChangeNote is published by the store after every committed mutation and
// consumed by the live-feed side. It names the changed record, never its
// contents: subscribers re-read the full collection.
type ChangeNote struct {
	ChangeID   string    `json:"change_id"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"record_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	ChangeCreated  = "record.created"
	ChangeReplaced = "record.replaced"
	ChangeDeleted  = "record.deleted"
)
