// Package actions is the per-record action surface: every listed record
// gets a coordinator exposing edit and delete. Instead of wiring callbacks
// through the view tree, triggers return command objects the owning view
// interprets, which keeps the whole surface testable without rendering.
package actions

import (
	"context"
	"errors"
	"log"

	"github.com/organizer-live/organizer/internal/app/form"
	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/store"
)

// ErrAlreadyResolved reports a second accept/reject on the same
// confirmation.
var ErrAlreadyResolved = errors.New("confirmation already resolved")

// Coordinator binds the edit and delete triggers to one record.
type Coordinator struct {
	store  store.Store
	record contracts.EventRecord
}

func New(s store.Store, record contracts.EventRecord) *Coordinator {
	return &Coordinator{store: s, record: record}
}

// Record returns the bound record.
func (c *Coordinator) Record() contracts.EventRecord { return c.record }

// OpenEdit carries a form controller pre-populated from the record at the
// moment edit was triggered. The form keeps those values even if the cache
// refreshes the record underneath; only an identity change rebinds it.
type OpenEdit struct {
	Record contracts.EventRecord
	Form   *form.Controller
}

// Edit opens a fresh edit session for the bound record.
func (c *Coordinator) Edit() OpenEdit {
	return OpenEdit{
		Record: c.record,
		Form:   form.NewEdit(c.store, c.record),
	}
}

// ConfirmDelete is the pending confirmation step of a delete trigger. It
// resolves exactly once: Reject is a full no-op, Confirm issues the delete
// request. The record is never removed from any local list here; removal is
// observed through the next store snapshot.
type ConfirmDelete struct {
	store    store.Store
	RecordID string

	resolved bool
	err      error
}

// RequestDelete starts the confirmation step for the bound record.
func (c *Coordinator) RequestDelete() *ConfirmDelete {
	return &ConfirmDelete{store: c.store, RecordID: c.record.ID}
}

// Confirm issues the delete request against the store.
func (d *ConfirmDelete) Confirm(ctx context.Context) error {
	if d.resolved {
		return ErrAlreadyResolved
	}
	d.resolved = true

	if err := d.store.Delete(ctx, d.RecordID); err != nil {
		d.err = err
		log.Printf("actions: delete %s: %v", d.RecordID, err)
		return err
	}
	return nil
}

// Reject dismisses the confirmation without issuing any request.
func (d *ConfirmDelete) Reject() {
	d.resolved = true
}

// Resolved reports whether the confirmation was accepted or rejected.
func (d *ConfirmDelete) Resolved() bool { return d.resolved }

// Err is the failure of a confirmed delete, if any. The record stays
// visible until the store says otherwise.
func (d *ConfirmDelete) Err() error { return d.err }
