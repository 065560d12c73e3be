// Package livecache mirrors the remote events collection in memory. The
// cache is the single owner of the mirrored list: it accepts complete
// snapshots from the store feed, never diffs, and fans each one out to its
// watchers. Nothing else writes the list; forms and actions talk to the
// store and wait for the next snapshot like everyone else.
package livecache

import (
	"context"
	"sync"

	"github.com/organizer-live/organizer/internal/store"
)

type Cache struct {
	store store.Store

	mu       sync.Mutex
	current  store.Snapshot
	watchers map[int]chan store.Snapshot
	nextID   int
	closed   bool
}

func New(s store.Store) *Cache {
	return &Cache{
		store:    s,
		watchers: map[int]chan store.Snapshot{},
	}
}

// Run subscribes to the store and applies snapshots until ctx is cancelled
// or the feed drops. There is no automatic retry: a dropped feed surfaces
// as Run returning, and the owner decides whether to run again.
func (c *Cache) Run(ctx context.Context) error {
	feed, cancel, err := c.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-feed:
			if !ok {
				return nil
			}
			c.apply(snapshot)
		}
	}
}

// Current returns a copy of the latest snapshot; empty before the first
// delivery.
func (c *Cache) Current() store.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(store.Snapshot, len(c.current))
	copy(out, c.current)
	return out
}

// Watch registers a watcher that receives every snapshot the cache applies,
// starting with the current one if any has arrived. The cancel func is
// idempotent.
func (c *Cache) Watch() (<-chan store.Snapshot, func()) {
	ch := make(chan store.Snapshot, 8)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if !c.closed {
		c.watchers[id] = ch
		liveWatchers.Inc()
		if c.current != nil {
			ch <- c.current
		}
	} else {
		close(ch)
	}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				liveWatchers.Dec()
			}
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close stops all watchers. Safe to call more than once, and safe even if
// no snapshot was ever received.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
		liveWatchers.Dec()
	}
	c.mu.Unlock()
}

// apply replaces the whole mirrored list with the incoming snapshot. The
// fan-out happens under the lock so Close can never close a channel with a
// send in flight; the sends never block, so holding the lock is safe.
func (c *Cache) apply(snapshot store.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.current = snapshot

	watcherDeliveries.Add(float64(len(c.watchers)))
	for _, ch := range c.watchers {
		select {
		case ch <- snapshot:
		default:
			// Slow watcher; it will catch up on the next snapshot.
		}
	}
}
