package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/organizer-live/organizer/internal/contracts"
)

func fieldsAt(title string, date time.Time) contracts.EventFields {
	return contracts.EventFields{
		Title:       title,
		Description: "Daily",
		Date:        date,
		Icon:        "pi pi-calendar",
		Colour:      "673AB7",
	}
}

func drainLatest(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	var latest Snapshot
	for {
		select {
		case snap := <-ch:
			latest = snap
		default:
			if latest == nil {
				t.Fatal("no snapshot delivered")
			}
			return latest
		}
	}
}

func TestCreate_NextSnapshotHoldsExactFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ch, cancel, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()
	<-ch // initial empty snapshot

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fields := fieldsAt("Standup", t0)
	id, err := m.Create(ctx, fields)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned an empty id")
	}

	snap := drainLatest(t, ch)
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d records, want 1", len(snap))
	}
	if snap[0].ID != id || snap[0].EventFields != fields {
		t.Fatalf("snapshot record mismatch: %+v", snap[0])
	}
}

func TestReplace_SameIDNoDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	id, err := m.Create(ctx, fieldsAt("Standup", t0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ch, cancel, _ := m.Subscribe(ctx)
	defer cancel()
	<-ch

	next := fieldsAt("Retro", t0.Add(time.Hour))
	if err := m.Replace(ctx, id, next); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	snap := drainLatest(t, ch)
	if len(snap) != 1 {
		t.Fatalf("replace duplicated the record: %d entries", len(snap))
	}
	if snap[0].ID != id || snap[0].EventFields != next {
		t.Fatalf("replaced record mismatch: %+v", snap[0])
	}
}

func TestReplace_UnknownIDIsStoreError(t *testing.T) {
	m := NewMemoryStore()
	err := m.Replace(context.Background(), "missing", fieldsAt("x", time.Now()))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDelete_NextSnapshotDropsID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	id, _ := m.Create(ctx, fieldsAt("Standup", t0))
	keep, _ := m.Create(ctx, fieldsAt("Retro", t0.Add(time.Hour)))

	ch, cancel, _ := m.Subscribe(ctx)
	defer cancel()
	<-ch

	if err := m.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snap := drainLatest(t, ch)
	if snap.Contains(id) {
		t.Fatalf("deleted id %q still present", id)
	}
	if !snap.Contains(keep) {
		t.Fatalf("unrelated record %q vanished", keep)
	}
}

func TestSnapshot_OrderedAscendingByDate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)

	m.Create(ctx, fieldsAt("first", t0))
	m.Create(ctx, fieldsAt("last", t1))
	// Arrives last, dated between the two.
	m.Create(ctx, fieldsAt("middle", t0.Add(time.Hour)))

	snap, _ := m.List(ctx)
	titles := []string{snap[0].Title, snap[1].Title, snap[2].Title}
	if titles[0] != "first" || titles[1] != "middle" || titles[2] != "last" {
		t.Fatalf("unexpected order: %v", titles)
	}
}

func TestSnapshot_EqualDatesKeepArrivalOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.Create(ctx, fieldsAt("a", t0))
	m.Create(ctx, fieldsAt("b", t0))

	snap, _ := m.List(ctx)
	if snap[0].Title != "a" || snap[1].Title != "b" {
		t.Fatalf("tie broke arrival order: %v, %v", snap[0].Title, snap[1].Title)
	}
}

func TestSubscribe_CancelTwiceIsSafe(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ch, cancel, _ := m.Subscribe(ctx)
	<-ch

	cancel()
	cancel()

	m.Create(ctx, fieldsAt("after cancel", time.Now()))
	select {
	case snap, ok := <-ch:
		if ok && len(snap) > 0 {
			t.Fatalf("snapshot delivered after cancel: %v", snap)
		}
	default:
	}
}

func TestFailNext_InjectsStoreErrorOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("permission denied")
	m.FailNext("create", boom)

	_, err := m.Create(ctx, fieldsAt("x", time.Now()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := m.Create(ctx, fieldsAt("x", time.Now())); err != nil {
		t.Fatalf("failure was not one-shot: %v", err)
	}
}
