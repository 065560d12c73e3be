package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/organizer-live/organizer/internal/contracts"
)

// SubscribeFunc attaches a handler to new change notes on a feed subject
// and returns the detach func. The natsutil package adapts JetStream to
// this shape; tests pass their own.
type SubscribeFunc func(subject string, handler func(payload []byte)) (func() error, error)

const snapshotDebounce = 75 * time.Millisecond

// changeFeed turns a stream of change notes into a stream of complete
// snapshots. Notes carry no record contents; every burst of notes collapses
// into one re-read of the full collection.
type changeFeed struct {
	subscribe SubscribeFunc
	list      func(ctx context.Context) (Snapshot, error)
}

func newChangeFeed(subscribe SubscribeFunc, list func(ctx context.Context) (Snapshot, error)) *changeFeed {
	return &changeFeed{subscribe: subscribe, list: list}
}

func (f *changeFeed) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	if f.subscribe == nil {
		return nil, nil, fmt.Errorf("change feed is not configured")
	}

	sub := &feedSubscription{
		feed: f,
		ch:   make(chan Snapshot, 8),
		done: make(chan struct{}),
	}

	initial, err := f.list(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub.deliver(initial)

	detach, err := f.subscribe(ChangeSubject(contracts.Collection), func([]byte) {
		sub.scheduleRefresh()
	})
	if err != nil {
		return nil, nil, err
	}
	sub.detach = detach

	return sub.ch, sub.cancel, nil
}

type feedSubscription struct {
	feed   *changeFeed
	ch     chan Snapshot
	detach func() error

	mu           sync.Mutex
	refreshTimer *time.Timer
	cancelled    bool
	done         chan struct{}
}

func (s *feedSubscription) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	if s.refreshTimer == nil {
		s.refreshTimer = time.AfterFunc(snapshotDebounce, s.runRefresh)
		return
	}
	s.refreshTimer.Reset(snapshotDebounce)
}

func (s *feedSubscription) runRefresh() {
	s.mu.Lock()
	s.refreshTimer = nil
	cancelled := s.cancelled
	s.mu.Unlock()
	if cancelled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	snapshot, err := s.feed.list(ctx)
	if err != nil {
		return
	}
	s.deliver(snapshot)
}

func (s *feedSubscription) deliver(snapshot Snapshot) {
	select {
	case <-s.done:
	case s.ch <- snapshot:
		snapshotsDelivered.Inc()
	default:
		// Slow consumer; the next snapshot supersedes this one anyway.
	}
}

// cancel stops further deliveries. Calling it again is a no-op.
func (s *feedSubscription) cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	timer := s.refreshTimer
	s.refreshTimer = nil
	close(s.done)
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if s.detach != nil {
		_ = s.detach()
	}
}
