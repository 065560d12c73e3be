package store

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/organizer-live/organizer/internal/contracts"
)

// MemoryStore keeps the collection in process memory with the same
// Subscribe/Create/Replace/Delete contract as the Postgres store. It backs
// the package tests and exercises every failure path through FailNext.
type MemoryStore struct {
	NewID func() string

	mu          sync.Mutex
	records     []contracts.EventRecord
	failNext    map[string]error
	subscribers map[int]chan Snapshot
	nextSubID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		NewID:       func() string { return ulid.MustNew(ulid.Now(), rand.Reader).String() },
		failNext:    map[string]error{},
		subscribers: map[int]chan Snapshot{},
	}
}

// FailNext makes the next request of the given op ("create", "replace",
// "delete") fail with a StoreError wrapping err.
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

func (m *MemoryStore) takeFailure(op string) error {
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, fields contracts.EventFields) (string, error) {
	m.mu.Lock()
	if err := m.takeFailure("create"); err != nil {
		m.mu.Unlock()
		return "", newStoreError("create", "could not write the record", err)
	}
	recordID := m.NewID()
	m.records = append(m.records, contracts.EventRecord{ID: recordID, EventFields: fields})
	m.broadcastLocked()
	m.mu.Unlock()
	return recordID, nil
}

func (m *MemoryStore) Replace(ctx context.Context, recordID string, fields contracts.EventFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("replace"); err != nil {
		return newStoreError("replace", "could not rewrite the record", err)
	}
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].EventFields = fields
			m.broadcastLocked()
			return nil
		}
	}
	return newStoreError("replace", "no record with this id", ErrRecordNotFound)
}

func (m *MemoryStore) Delete(ctx context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("delete"); err != nil {
		return newStoreError("delete", "could not remove the record", err)
	}
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			m.broadcastLocked()
			return nil
		}
	}
	return newStoreError("delete", "no record with this id", ErrRecordNotFound)
}

func (m *MemoryStore) Get(ctx context.Context, recordID string) (contracts.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == recordID {
			return rec, nil
		}
	}
	return contracts.EventRecord{}, newStoreError("get", "no record with this id", ErrRecordNotFound)
}

func (m *MemoryStore) List(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

func (m *MemoryStore) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 16)

	m.mu.Lock()
	m.nextSubID++
	subID := m.nextSubID
	m.subscribers[subID] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, subID)
			m.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// snapshotLocked copies the records sorted ascending by date; the stable
// sort keeps arrival order for equal dates.
func (m *MemoryStore) snapshotLocked() Snapshot {
	snapshot := make(Snapshot, len(m.records))
	copy(snapshot, m.records)
	sortSnapshot(snapshot)
	return snapshot
}

func (m *MemoryStore) broadcastLocked() {
	snapshot := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// SeedRecord inserts a record with a fixed id and date, bypassing the feed.
// Test setup only.
func (m *MemoryStore) SeedRecord(id string, fields contracts.EventFields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, contracts.EventRecord{ID: id, EventFields: fields})
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
