package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jbweber/blockyard/internal/notify"
	"github.com/jbweber/blockyard/internal/udisks"
)

// fakeSource serves object snapshots, optionally blocking a call until
// released so refreshes can be interleaved deterministically.
type fakeSource struct {
	mu      sync.Mutex
	objects []udisks.Object
	err     error
	gate    chan struct{} // When set, ManagedObjects waits on it once
	calls   int
}

func (f *fakeSource) set(objects []udisks.Object) {
	f.mu.Lock()
	f.objects = objects
	f.mu.Unlock()
}

func (f *fakeSource) ManagedObjects(_ context.Context) ([]udisks.Object, []udisks.DecodeFailure, error) {
	f.mu.Lock()
	f.calls++
	objects, err, gate := f.objects, f.err, f.gate
	f.gate = nil
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return objects, nil, err
}

func diskObjects(devices ...string) []udisks.Object {
	var objs []udisks.Object
	for _, d := range devices {
		objs = append(objs, udisks.Object{
			Path:  "/obj" + d,
			Block: &udisks.BlockProps{Device: d, Size: 1 << 30},
		})
	}
	return objs
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda", "/dev/sdb")}
	e := New(src)

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := e.Snapshot()
	if len(snap.Disks) != 2 {
		t.Fatalf("got %d disks, want 2", len(snap.Disks))
	}
	if snap.Trees["/dev/sda"] == nil || snap.Layouts["/dev/sda"] == nil {
		t.Error("snapshot missing tree or layout for /dev/sda")
	}
	if snap.Generation == 0 {
		t.Error("published snapshot has generation 0")
	}
}

func TestRefreshFailureKeepsOldSnapshot(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda")}
	e := New(src)
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := e.Snapshot()

	src.mu.Lock()
	src.err = fmt.Errorf("bus gone")
	src.mu.Unlock()

	if err := e.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if e.Snapshot() != before {
		t.Error("failed refresh replaced the snapshot")
	}
}

func TestRefreshLastWins(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda")}
	e := New(src)

	// First refresh stalls at the service until released; a second one
	// with different content starts and completes in the meantime.
	gate := make(chan struct{})
	src.gate = gate

	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()

	// Wait for the stalled refresh to claim its generation.
	for {
		src.mu.Lock()
		started := src.calls == 1
		src.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	src.set(diskObjects("/dev/sda", "/dev/sdb"))
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// The stale first result must have been discarded.
	snap := e.Snapshot()
	if len(snap.Disks) != 2 {
		t.Errorf("got %d disks, want the 2 from the newer refresh", len(snap.Disks))
	}
}

func TestOnUpdateSkipsStaleRefresh(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda")}
	e := New(src)

	var updates int
	e.OnUpdate = func(*Snapshot) { updates++ }

	gate := make(chan struct{})
	src.gate = gate
	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()
	for {
		src.mu.Lock()
		started := src.calls == 1
		src.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(gate)
	<-done

	if updates != 1 {
		t.Errorf("OnUpdate ran %d times, want 1 (stale refresh must not publish)", updates)
	}
}

func TestRunRefreshesPerEvent(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda")}
	e := New(src)

	raw := make(chan udisks.RawEvent)
	sub, err := notify.Subscribe(watchFunc(func() (<-chan udisks.RawEvent, func(), error) {
		return raw, func() { close(raw) }, nil
	}))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), sub) }()

	raw <- udisks.RawEvent{Added: true, Path: "/obj/sdb"}
	raw <- udisks.RawEvent{Added: false, Path: "/obj/sdb"}
	sub.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	// Initial refresh plus one per event. Events delivered before Close
	// may still be in flight when the sequence ends, so at least 2.
	if calls < 2 {
		t.Errorf("service enumerated %d times, want at least 2", calls)
	}

	if !e.Degraded() {
		t.Error("engine not degraded after Run returned")
	}
}

func TestRunReportsSubscriptionLoss(t *testing.T) {
	src := &fakeSource{objects: diskObjects("/dev/sda")}
	e := New(src)

	raw := make(chan udisks.RawEvent)
	sub, err := notify.Subscribe(watchFunc(func() (<-chan udisks.RawEvent, func(), error) {
		return raw, func() {}, nil
	}))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), sub) }()

	// Transport drop, not a clean Close.
	close(raw)

	select {
	case err := <-done:
		if !errors.Is(err, notify.ErrSubscriptionLost) {
			t.Errorf("Run returned %v, want ErrSubscriptionLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after transport drop")
	}
}

// watchFunc adapts a function to the subscription's watcher contract.
type watchFunc func() (<-chan udisks.RawEvent, func(), error)

func (f watchFunc) WatchObjects() (<-chan udisks.RawEvent, func(), error) { return f() }
