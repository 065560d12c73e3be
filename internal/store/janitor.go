package store

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultPurgeSchedule is a cron-style schedule string.
	DefaultPurgeSchedule = "@daily"
	// DefaultRetention keeps soft-deleted rows recoverable for a week.
	DefaultRetention = 7 * 24 * time.Hour
)

// Janitor hard-purges soft-deleted records on a cron schedule. Deletes stay
// soft at request time so a snapshot in flight never references a vanished
// row; the janitor reclaims them once the retention window has passed.
type Janitor struct {
	Store     *PostgresStore
	Schedule  string
	Retention time.Duration

	runner *cron.Cron
}

func NewJanitor(store *PostgresStore) *Janitor {
	return &Janitor{
		Store:     store,
		Schedule:  DefaultPurgeSchedule,
		Retention: DefaultRetention,
	}
}

func (j *Janitor) Start() error {
	runner := cron.New()
	if _, err := runner.AddFunc(j.Schedule, j.purge); err != nil {
		return err
	}
	j.runner = runner
	runner.Start()
	return nil
}

func (j *Janitor) Stop() {
	if j.runner == nil {
		return
	}
	ctx := j.runner.Stop()
	<-ctx.Done()
	j.runner = nil
}

func (j *Janitor) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := j.Store.PurgeDeleted(ctx, j.Retention)
	if err != nil {
		log.Printf("janitor: purge deleted records: %v", err)
		return
	}
	if purged > 0 {
		purgedRecords.Add(float64(purged))
		log.Printf("janitor: purged %d deleted records", purged)
	}
}
