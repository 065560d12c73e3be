package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nuid"
	"github.com/oklog/ulid/v2"

	"github.com/organizer-live/organizer/internal/contracts"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
  record_id text PRIMARY KEY,
  title text NOT NULL,
  description text NOT NULL,
  date timestamptz NOT NULL,
  icon text NOT NULL,
  colour text NOT NULL,
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL,
  deleted_at timestamptz
)`

const createEventsDateIndexSQL = `
CREATE INDEX IF NOT EXISTS events_date_idx ON events (date ASC, created_at ASC)
WHERE deleted_at IS NULL`

const insertEventSQL = `
INSERT INTO events (record_id, title, description, date, icon, colour, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
`

const replaceEventSQL = `
UPDATE events
SET title = $2,
    description = $3,
    date = $4,
    icon = $5,
    colour = $6,
    updated_at = $7
WHERE record_id = $1 AND deleted_at IS NULL
`

const deleteEventSQL = `
UPDATE events
SET updated_at = $2,
    deleted_at = $2
WHERE record_id = $1 AND deleted_at IS NULL
`

const listEventsSQL = `
SELECT record_id, title, description, date, icon, colour
FROM events
WHERE deleted_at IS NULL
ORDER BY date ASC, created_at ASC
`

const purgeDeletedSQL = `
DELETE FROM events
WHERE deleted_at IS NOT NULL AND deleted_at < $1
`

// PublishFunc delivers a serialized change note to the feed transport.
type PublishFunc func(subject string, payload []byte) error

// PostgresStore persists the events collection in Postgres and publishes a
// ChangeNote per committed mutation. Record ids are ULIDs, so a listing by
// created_at and a listing by id agree on arrival order.
type PostgresStore struct {
	Pool    *pgxpool.Pool
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string

	feed *changeFeed
}

func NewPostgresStore(pool *pgxpool.Pool, publish PublishFunc, subscribe SubscribeFunc) *PostgresStore {
	s := &PostgresStore{
		Pool:    pool,
		Publish: publish,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   func() string { return ulid.MustNew(ulid.Now(), rand.Reader).String() },
	}
	s.feed = newChangeFeed(subscribe, s.List)
	return s
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, createEventsTableSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createEventsDateIndexSQL); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, fields contracts.EventFields) (_ string, err error) {
	defer func() { countRequest("create", err) }()
	recordID := s.NewID()
	now := s.Now()
	if _, err := s.Pool.Exec(ctx, insertEventSQL,
		recordID,
		fields.Title,
		fields.Description,
		fields.Date,
		fields.Icon,
		fields.Colour,
		now,
	); err != nil {
		return "", newStoreError("create", "could not write the record", err)
	}
	s.publishChange(contracts.ChangeCreated, recordID, now)
	return recordID, nil
}

func (s *PostgresStore) Replace(ctx context.Context, recordID string, fields contracts.EventFields) (err error) {
	defer func() { countRequest("replace", err) }()
	now := s.Now()
	tag, err := s.Pool.Exec(ctx, replaceEventSQL,
		recordID,
		fields.Title,
		fields.Description,
		fields.Date,
		fields.Icon,
		fields.Colour,
		now,
	)
	if err != nil {
		return newStoreError("replace", "could not rewrite the record", err)
	}
	if tag.RowsAffected() == 0 {
		return newStoreError("replace", "no record with this id", ErrRecordNotFound)
	}
	s.publishChange(contracts.ChangeReplaced, recordID, now)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, recordID string) (err error) {
	defer func() { countRequest("delete", err) }()
	now := s.Now()
	tag, err := s.Pool.Exec(ctx, deleteEventSQL, recordID, now)
	if err != nil {
		return newStoreError("delete", "could not remove the record", err)
	}
	if tag.RowsAffected() == 0 {
		return newStoreError("delete", "no record with this id", ErrRecordNotFound)
	}
	s.publishChange(contracts.ChangeDeleted, recordID, now)
	return nil
}

// List reads the complete current snapshot, ordered ascending by date with
// arrival order breaking ties.
func (s *PostgresStore) List(ctx context.Context) (_ Snapshot, err error) {
	defer func() { countRequest("list", err) }()
	rows, err := s.Pool.Query(ctx, listEventsSQL)
	if err != nil {
		return nil, newStoreError("list", "could not read the collection", err)
	}
	defer rows.Close()

	snapshot := make(Snapshot, 0, 16)
	for rows.Next() {
		var rec contracts.EventRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Title,
			&rec.Description,
			&rec.Date,
			&rec.Icon,
			&rec.Colour,
		); err != nil {
			return nil, newStoreError("list", "could not read the collection", err)
		}
		snapshot = append(snapshot, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError("list", "could not read the collection", err)
	}
	return snapshot, nil
}

// Get reads one live record by id.
func (s *PostgresStore) Get(ctx context.Context, recordID string) (_ contracts.EventRecord, err error) {
	defer func() { countRequest("get", err) }()
	var rec contracts.EventRecord
	err = s.Pool.QueryRow(ctx,
		`SELECT record_id, title, description, date, icon, colour
		 FROM events
		 WHERE record_id = $1 AND deleted_at IS NULL`,
		recordID,
	).Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Date, &rec.Icon, &rec.Colour)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contracts.EventRecord{}, newStoreError("get", "no record with this id", ErrRecordNotFound)
		}
		return contracts.EventRecord{}, newStoreError("get", "could not read the record", err)
	}
	return rec, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	return s.feed.Subscribe(ctx)
}

// PurgeDeleted hard-removes records soft-deleted before the cutoff.
func (s *PostgresStore) PurgeDeleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.Now().Add(-olderThan)
	tag, err := s.Pool.Exec(ctx, purgeDeletedSQL, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// publishChange runs after the row is committed. A feed outage must not
// fail a write the store already accepted, so publish errors are only
// logged and counted.
func (s *PostgresStore) publishChange(kind, recordID string, at time.Time) {
	if s.Publish == nil {
		return
	}
	note := contracts.ChangeNote{
		ChangeID:   nuid.Next(),
		Collection: contracts.Collection,
		RecordID:   recordID,
		Kind:       kind,
		OccurredAt: at,
	}
	payload, err := json.Marshal(note)
	if err != nil {
		log.Printf("store: marshal change note: %v", err)
		return
	}
	if err := s.Publish(ChangeSubject(contracts.Collection), payload); err != nil {
		changePublishFailures.Inc()
		log.Printf("store: publish change note for %s: %v", recordID, err)
	}
}

// ChangeSubject is the feed subject carrying change notes for a collection.
func ChangeSubject(collection string) string {
	return "organizer.change." + collection
}
