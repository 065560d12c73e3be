package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/organizer-live/organizer/internal/contracts"
	"github.com/organizer-live/organizer/internal/palette"
	"github.com/organizer-live/organizer/internal/store"
)

func validDraft(c *Controller) {
	c.SetTitle("Standup")
	c.SetDescription("Daily")
	c.SetDate(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	c.SelectIcon("pi pi-calendar")
	c.SelectColour("673AB7")
}

func TestSubmit_EmptyTitleIssuesNoRequest(t *testing.T) {
	m := store.NewMemoryStore()
	c := NewCreate(m)
	c.SetDescription("Daily")
	c.SetDate(time.Now())

	err := c.Submit(context.Background())
	if !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
	snap, _ := m.List(context.Background())
	if len(snap) != 0 {
		t.Fatalf("invalid submit reached the store: %v", snap)
	}
}

func TestTitleError_VisibleOnlyAfterTouch(t *testing.T) {
	c := NewCreate(store.NewMemoryStore())

	if got := c.VisibleErrors().Title; got != "" {
		t.Fatalf("title error visible before first interaction: %q", got)
	}
	if c.Errors().Title == "" {
		t.Fatal("empty title should carry a validation error")
	}

	c.SetTitle("")
	if c.VisibleErrors().Title == "" {
		t.Fatal("title error hidden after the field was touched")
	}

	c.SetTitle("Standup")
	if c.VisibleErrors().Title != "" {
		t.Fatal("title error survived a valid value")
	}
}

func TestSubmit_InvalidDraftRevealsAllErrors(t *testing.T) {
	c := NewCreate(store.NewMemoryStore())
	_ = c.Submit(context.Background())
	vis := c.VisibleErrors()
	if vis.Title == "" || vis.Description == "" || vis.Date == "" {
		t.Fatalf("blocked submit should surface every error: %+v", vis)
	}
}

func TestCreateMode_DefaultsPreselected(t *testing.T) {
	c := NewCreate(store.NewMemoryStore())
	if c.Fields().Icon != palette.DefaultIcon() {
		t.Fatalf("icon default missing: %q", c.Fields().Icon)
	}
	if c.Fields().Colour != palette.DefaultColour() {
		t.Fatalf("colour default missing: %q", c.Fields().Colour)
	}
	if c.Errors().Icon != "" || c.Errors().Colour != "" {
		t.Fatal("defaults should validate clean")
	}
}

func TestSelectIcon_ReplacesPreviousChoice(t *testing.T) {
	c := NewCreate(store.NewMemoryStore())
	c.SelectIcon("pi pi-heart")
	c.SelectIcon("pi pi-gift")
	if c.Fields().Icon != "pi pi-gift" {
		t.Fatalf("selection did not replace: %q", c.Fields().Icon)
	}
}

func TestSubmit_CreateWritesAndResets(t *testing.T) {
	m := store.NewMemoryStore()
	c := NewCreate(m)
	closed := false
	c.OnClose(func() { closed = true })
	validDraft(c)

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !closed {
		t.Fatal("close callback did not run")
	}
	if c.Fields().Title != "" || c.Fields().Icon != palette.DefaultIcon() {
		t.Fatalf("create form did not reset to blank: %+v", c.Fields())
	}

	snap, _ := m.List(context.Background())
	if len(snap) != 1 || snap[0].Title != "Standup" || snap[0].ID == "" {
		t.Fatalf("unexpected store state: %+v", snap)
	}
}

func TestSubmit_EditReplacesByBoundID(t *testing.T) {
	m := store.NewMemoryStore()
	id, _ := m.Create(context.Background(), contracts.EventFields{
		Title: "Standup", Description: "Daily",
		Date: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Icon: "pi pi-calendar", Colour: "673AB7",
	})
	rec, _ := m.Get(context.Background(), id)

	c := NewEdit(m, rec)
	if c.Fields() != rec.EventFields {
		t.Fatalf("edit form not pre-populated: %+v", c.Fields())
	}

	c.SetTitle("Retro")
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap, _ := m.List(context.Background())
	if len(snap) != 1 || snap[0].ID != id || snap[0].Title != "Retro" {
		t.Fatalf("replace went wrong: %+v", snap)
	}
	// Edit mode resets back to the source record's values.
	if c.Fields().Title != "Standup" {
		t.Fatalf("edit form did not re-populate from its source: %+v", c.Fields())
	}
}

func TestSubmit_StoreFailureKeepsDraft(t *testing.T) {
	m := store.NewMemoryStore()
	id, _ := m.Create(context.Background(), contracts.EventFields{
		Title: "Standup", Description: "Daily",
		Date: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Icon: "pi pi-calendar", Colour: "673AB7",
	})
	rec, _ := m.Get(context.Background(), id)

	c := NewEdit(m, rec)
	c.SetTitle("Retro")
	m.FailNext("replace", errors.New("network unreachable"))

	err := c.Submit(context.Background())
	var storeErr *store.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	if c.Fields().Title != "Retro" {
		t.Fatalf("failed submit reset the draft: %+v", c.Fields())
	}
	if c.LastError() == "" {
		t.Fatal("failure detail not surfaced")
	}

	// Same action retried without re-entering data.
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if c.LastError() != "" {
		t.Fatalf("stale error after success: %q", c.LastError())
	}
}

func TestRebind_OnlyOnIdentityChange(t *testing.T) {
	m := store.NewMemoryStore()
	rec := contracts.EventRecord{ID: "rec-1", EventFields: contracts.EventFields{
		Title: "Standup", Description: "Daily", Date: time.Now(),
		Icon: "pi pi-calendar", Colour: "673AB7",
	}}

	c := NewEdit(m, rec)
	c.SetTitle("half-edited")

	// A refreshed reference with the same id must not clobber the draft.
	refreshed := rec
	refreshed.Title = "Standup (renamed elsewhere)"
	c.Rebind(refreshed)
	if c.Fields().Title != "half-edited" {
		t.Fatalf("same-id rebind clobbered the draft: %q", c.Fields().Title)
	}

	other := contracts.EventRecord{ID: "rec-2", EventFields: contracts.EventFields{
		Title: "Retro", Description: "Weekly", Date: time.Now(),
		Icon: "pi pi-clock", Colour: "0288D1",
	}}
	c.Rebind(other)
	if c.Fields().Title != "Retro" || c.BoundID() != "rec-2" {
		t.Fatalf("identity change did not rebind: %+v", c.Fields())
	}
}

func TestValidate_OffPaletteSelectionRejected(t *testing.T) {
	c := NewCreate(store.NewMemoryStore())
	validDraft(c)
	c.SelectColour("BADA55")
	if c.Errors().Colour == "" {
		t.Fatal("off-palette colour accepted")
	}
	if err := c.Submit(context.Background()); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
}
