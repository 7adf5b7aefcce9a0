// Package notify exposes the storage service's structural change
// notifications as a lazy, non-restartable event sequence.
//
// The sequence is backed solely by the service's signals: there is no
// steady-state re-polling of the device list, which would produce stale
// and racy state, and no implicit timer-driven retry. When the transport
// drops the subscription the sequence terminates with ErrSubscriptionLost;
// resubscribing is an explicit caller decision.
package notify

import (
	"errors"
	"sync"

	"github.com/jbweber/blockyard/internal/udisks"
)

// ErrSubscriptionLost reports that the transport dropped the change
// subscription. The sequence is finished; the caller may Subscribe again.
var ErrSubscriptionLost = errors.New("change subscription lost")

// Event is one structural change: an object was added to or removed from
// the service's tree. Path may not identify a disk; the required reaction
// is a refresh regardless.
type Event struct {
	Added bool
	Path  string
}

// watcher is the slice of the service client this package needs.
// Satisfied by *udisks.Client.
type watcher interface {
	WatchObjects() (<-chan udisks.RawEvent, func(), error)
}

// Subscription is one established change subscription.
type Subscription struct {
	events chan Event
	cancel func()
	quit   chan struct{} // Closed by Close; unblocks a stalled forward

	mu     sync.Mutex
	closed bool // Set by Close; distinguishes a clean stop from a drop
	err    error
}

// Subscribe establishes the change subscription. It fails immediately when
// the subscription cannot be set up; no retry runs in the background.
func Subscribe(w watcher) (*Subscription, error) {
	raw, cancel, err := w.WatchObjects()
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		events: make(chan Event, 16),
		cancel: cancel,
		quit:   make(chan struct{}),
	}

	go func() {
		defer close(s.events)
		for ev := range raw {
			select {
			case s.events <- Event{Added: ev.Added, Path: ev.Path}:
			case <-s.quit:
				// Consumer closed with the buffer full; discard the rest
				// of the raw stream until the transport tears it down.
				for range raw {
				}
				return
			}
		}
		s.mu.Lock()
		if !s.closed {
			s.err = ErrSubscriptionLost
		}
		s.mu.Unlock()
	}()

	return s, nil
}

// Events returns the event sequence. The channel closes when the
// subscription ends, either by Close or by transport loss; consult Err to
// tell which.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err reports why the sequence ended: nil after a clean Close,
// ErrSubscriptionLost after a transport drop. Only meaningful once Events
// is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close drops the subscription cleanly. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.quit)
	s.cancel()
}
