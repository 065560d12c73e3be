package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/organizer-live/organizer/internal/contracts"
)

// ErrRecordNotFound reports a replace or delete against an id the
// collection does not hold.
var ErrRecordNotFound = errors.New("record not found")

// StoreError wraps any failed store request with a human-readable detail
// suitable for surfacing next to the control that triggered the request.
type StoreError struct {
	Op     string
	Detail string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("store %s: %s", e.Op, e.Detail)
}

func (e *StoreError) Unwrap() error { return e.Err }

func newStoreError(op, detail string, err error) *StoreError {
	return &StoreError{Op: op, Detail: detail, Err: err}
}

// Snapshot is the complete current ordered list of the collection. Feeds
// always deliver whole snapshots, never diffs.
type Snapshot []contracts.EventRecord

// Contains reports whether the snapshot holds a record with the given id.
func (s Snapshot) Contains(id string) bool {
	for _, rec := range s {
		if rec.ID == id {
			return true
		}
	}
	return false
}

// Store is the record store consumed by the rest of the system: ordered
// live snapshots plus create / full-replace / delete requests. All request
// failures are *StoreError.
type Store interface {
	// Subscribe establishes a fresh feed of complete snapshots, starting
	// with the current state of the collection. The returned cancel func
	// stops further deliveries and is safe to call more than once.
	Subscribe(ctx context.Context) (<-chan Snapshot, func(), error)

	Create(ctx context.Context, fields contracts.EventFields) (string, error)
	Replace(ctx context.Context, recordID string, fields contracts.EventFields) error
	Delete(ctx context.Context, recordID string) error
}

// sortSnapshot orders records ascending by date. The sort is stable so
// equal dates keep their arrival order within the snapshot.
func sortSnapshot(records Snapshot) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}
