// Package engine maintains the process-wide storage topology: the disk
// records, the per-disk volume trees and the per-disk segment layouts,
// all derived from one object snapshot of the storage service.
//
// The topology has an explicit lifecycle: empty at startup, fully replaced
// on each refresh, discarded at shutdown. Readers always observe a
// complete, consistent snapshot; refreshes never mutate a published
// snapshot in place. When refreshes race, the last one started wins and
// the stale result is discarded, never merged.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jbweber/blockyard/internal/directory"
	"github.com/jbweber/blockyard/internal/model"
	"github.com/jbweber/blockyard/internal/notify"
	"github.com/jbweber/blockyard/internal/segment"
	"github.com/jbweber/blockyard/internal/tree"
	"github.com/jbweber/blockyard/internal/udisks"
)

// source is the slice of the service client this package needs.
// Satisfied by *udisks.Client.
type source interface {
	ManagedObjects(ctx context.Context) ([]udisks.Object, []udisks.DecodeFailure, error)
}

// Snapshot is one complete, immutable view of the topology. Maps are keyed
// by disk device path.
type Snapshot struct {
	Generation uint64
	Disks      []model.DiskRecord
	Trees      map[string]*model.VolumeNode
	Partitions map[string][]model.PartitionRecord
	Layouts    map[string][]model.Segment
	Anomalies  map[string][]segment.Anomaly
	// Failures lists service objects that failed to translate during the
	// refresh that produced this snapshot.
	Failures []udisks.DecodeFailure
}

// Engine owns the current topology snapshot.
type Engine struct {
	client source

	// OnUpdate, when set before the first refresh, is called with every
	// snapshot that actually gets published. Discarded stale refreshes do
	// not trigger it.
	OnUpdate func(*Snapshot)

	mu       sync.Mutex
	gen      uint64 // Generation of the most recently started refresh
	current  *Snapshot
	degraded bool
}

// New creates an engine with an empty topology.
func New(client source) *Engine {
	return &Engine{client: client, current: &Snapshot{}}
}

// Snapshot returns the current topology. The returned value is immutable;
// a refresh publishes a new one rather than touching it.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Degraded reports whether the engine is running without a change
// subscription. In that state the topology only updates on explicit
// Refresh calls; there is deliberately no polling fallback.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// SetDegraded records whether a change subscription is feeding the engine.
func (e *Engine) SetDegraded(v bool) {
	e.mu.Lock()
	e.degraded = v
	e.mu.Unlock()
}

// Refresh re-enumerates the service and atomically swaps in a freshly
// built snapshot. If another refresh starts while this one is outstanding,
// this one's result is discarded (last-refresh-wins) and Refresh returns
// nil: the topology is current, just built by someone else.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	objects, failures, err := e.client.ManagedObjects(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	snap := buildSnapshot(gen, objects, failures)

	e.mu.Lock()
	if gen != e.gen {
		// A newer refresh started; ours is stale. Never merge.
		e.mu.Unlock()
		return nil
	}
	e.current = snap
	e.mu.Unlock()

	if e.OnUpdate != nil {
		e.OnUpdate(snap)
	}
	return nil
}

func buildSnapshot(gen uint64, objects []udisks.Object, failures []udisks.DecodeFailure) *Snapshot {
	disks := directory.DisksFrom(objects)

	snap := &Snapshot{
		Generation: gen,
		Disks:      disks,
		Trees:      make(map[string]*model.VolumeNode, len(disks)),
		Partitions: make(map[string][]model.PartitionRecord, len(disks)),
		Layouts:    make(map[string][]model.Segment, len(disks)),
		Anomalies:  make(map[string][]segment.Anomaly),
		Failures:   failures,
	}

	for _, d := range disks {
		snap.Trees[d.Device] = tree.Build(d, objects)
		parts := tree.Partitions(d, objects)
		snap.Partitions[d.Device] = parts
		layout, anomalies := segment.Layout(d.Size, parts)
		snap.Layouts[d.Device] = layout
		if len(anomalies) > 0 {
			snap.Anomalies[d.Device] = anomalies
		}
	}
	return snap
}

// Run consumes the subscription's events, refreshing the topology on each
// one, until the sequence ends or ctx is cancelled. Events may identify an
// object that is not a disk, and a removal can orphan a whole subtree, so
// every event triggers a full refresh.
//
// Run returns the subscription's terminal error (ErrSubscriptionLost on a
// transport drop, nil after a clean Close) or ctx.Err(). It never
// resubscribes on its own.
func (e *Engine) Run(ctx context.Context, sub *notify.Subscription) error {
	e.SetDegraded(false)
	defer e.SetDegraded(true)

	if err := e.Refresh(ctx); err != nil {
		log.Printf("initial refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					return err
				}
				return nil
			}
			if err := e.Refresh(ctx); err != nil {
				log.Printf("refresh after change event failed: %v", err)
			}
		}
	}
}
