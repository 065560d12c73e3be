// Package form holds the draft state of a single event dialog: field
// values, per-field touched flags, synchronous validation, and submit. A
// controller owns exactly one draft; concurrently open dialogs never share
// state and simply race at the store.
package form

import (
	"context"
	"errors"
	"time"

	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/palette"
	"github.com/organizer-live/organizer/internal/store"
)

// ErrInvalidDraft is returned by Submit while any validation error is
// present. No store request is issued.
var ErrInvalidDraft = errors.New("draft has validation errors")

// FieldErrors is the closed per-field error record: one slot per field the
// form owns, so an unvalidated field cannot be silently ignored. An empty
// string means the field is fine.
type FieldErrors struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Colour      string `json:"colour,omitempty"`
}

func (e FieldErrors) Any() bool {
	return e != FieldErrors{}
}

// touched mirrors FieldErrors field for field; a field's error becomes
// visible only after its first interaction.
type touched struct {
	Title       bool
	Description bool
	Date        bool
	Icon        bool
	Colour      bool
}

// Controller manages one record draft. Zero-valued dates mean "no date
// picked yet"; everything else starts from the palette defaults in create
// mode or from the bound record in edit mode.
type Controller struct {
	store store.Store

	boundID string
	initial contracts.EventFields

	fields  contracts.EventFields
	touched touched
	errs    FieldErrors

	submitting bool
	lastError  string
	onClose    func()
}

// NewCreate returns a blank controller in create mode, with the default
// icon and colour pre-selected.
func NewCreate(s store.Store) *Controller {
	c := &Controller{
		store: s,
		initial: contracts.EventFields{
			Icon:   palette.DefaultIcon(),
			Colour: palette.DefaultColour(),
		},
	}
	c.reset()
	return c
}

// NewEdit returns a controller pre-populated from an existing record; a
// valid submit issues a full replace keyed by the record's id.
func NewEdit(s store.Store, record contracts.EventRecord) *Controller {
	c := &Controller{
		store:   s,
		boundID: record.ID,
		initial: record.EventFields,
	}
	c.reset()
	return c
}

// OnClose sets the callback invoked after a successful submit.
func (c *Controller) OnClose(fn func()) { c.onClose = fn }

// EditMode reports whether a submit replaces an existing record.
func (c *Controller) EditMode() bool { return c.boundID != "" }

// BoundID is the id of the record being edited; empty in create mode.
func (c *Controller) BoundID() string { return c.boundID }

// Fields returns the current draft values.
func (c *Controller) Fields() contracts.EventFields { return c.fields }

// Submitting reports an in-flight submit.
func (c *Controller) Submitting() bool { return c.submitting }

// LastError is the human-readable detail of the last failed submit, empty
// after a success or before any failure.
func (c *Controller) LastError() string { return c.lastError }

func (c *Controller) SetTitle(v string) {
	c.fields.Title = v
	c.touched.Title = true
	c.validate()
}

func (c *Controller) SetDescription(v string) {
	c.fields.Description = v
	c.touched.Description = true
	c.validate()
}

func (c *Controller) SetDate(v time.Time) {
	c.fields.Date = v
	c.touched.Date = true
	c.validate()
}

// SelectIcon replaces the previous icon selection; there is no
// user-reachable unselected state once a default exists.
func (c *Controller) SelectIcon(v string) {
	c.fields.Icon = v
	c.touched.Icon = true
	c.validate()
}

// SelectColour replaces the previous colour selection.
func (c *Controller) SelectColour(v string) {
	c.fields.Colour = v
	c.touched.Colour = true
	c.validate()
}

// Errors returns all current validation errors regardless of interaction.
func (c *Controller) Errors() FieldErrors { return c.errs }

// VisibleErrors returns only the errors for fields the user has touched,
// so nothing shows before first interaction.
func (c *Controller) VisibleErrors() FieldErrors {
	visible := FieldErrors{}
	if c.touched.Title {
		visible.Title = c.errs.Title
	}
	if c.touched.Description {
		visible.Description = c.errs.Description
	}
	if c.touched.Date {
		visible.Date = c.errs.Date
	}
	if c.touched.Icon {
		visible.Icon = c.errs.Icon
	}
	if c.touched.Colour {
		visible.Colour = c.errs.Colour
	}
	return visible
}

// Submit issues the create or replace request for a valid draft. On an
// invalid draft it returns ErrInvalidDraft and marks every field touched so
// all errors become visible. On store failure the draft and touched state
// survive untouched for a retry; on success the controller resets to its
// initial state and the close callback runs.
func (c *Controller) Submit(ctx context.Context) error {
	c.validate()
	if c.errs.Any() {
		c.touchAll()
		return ErrInvalidDraft
	}

	c.submitting = true
	defer func() { c.submitting = false }()

	var err error
	if c.EditMode() {
		err = c.store.Replace(ctx, c.boundID, c.fields)
	} else {
		_, err = c.store.Create(ctx, c.fields)
	}
	if err != nil {
		var storeErr *store.StoreError
		if errors.As(err, &storeErr) {
			c.lastError = storeErr.Detail
		} else {
			c.lastError = err.Error()
		}
		return err
	}

	c.reset()
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

// Rebind re-initializes the draft from a record, but only when the record
// identity changes. A fresh reference to the same id never clobbers an
// in-progress draft.
func (c *Controller) Rebind(record contracts.EventRecord) {
	if record.ID == c.boundID {
		return
	}
	c.boundID = record.ID
	c.initial = record.EventFields
	c.reset()
}

// Validate checks a complete field set against the draft rules. It is the
// same validation Submit runs, usable by callers that build fields outside
// a controller.
func Validate(fields contracts.EventFields) FieldErrors {
	errs := FieldErrors{}
	if fields.Title == "" {
		errs.Title = "Title is required."
	}
	if fields.Date.IsZero() {
		errs.Date = "Date is required."
	}
	if fields.Description == "" {
		errs.Description = "Description is required."
	}
	switch {
	case fields.Icon == "":
		errs.Icon = "Icon is required."
	case !palette.ValidIcon(fields.Icon):
		errs.Icon = "Icon is not in the palette."
	}
	switch {
	case fields.Colour == "":
		errs.Colour = "Colour is required."
	case !palette.ValidColour(fields.Colour):
		errs.Colour = "Colour is not in the palette."
	}
	return errs
}

func (c *Controller) validate() {
	c.errs = Validate(c.fields)
}

func (c *Controller) touchAll() {
	c.touched = touched{Title: true, Description: true, Date: true, Icon: true, Colour: true}
}

func (c *Controller) reset() {
	c.fields = c.initial
	c.touched = touched{}
	c.lastError = ""
	c.validate()
}
