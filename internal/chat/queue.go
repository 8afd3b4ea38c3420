// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the send-side machinery: the chunk throttling
// queue that paces streamed text into UI state, and the orchestrator
// that runs a full send operation against the stores and the backend.
package chat

import (
	"context"
	"sync"
	"time"
)

// Drain cadence tuning. The queue applies fragments at a bounded rate
// so a render is not forced on every network packet.
const (
	// burstThreshold is the backlog size above which the queue drains
	// at its fastest cadence.
	burstThreshold = 10

	// burstDelay is the inter-fragment delay under heavy backlog.
	burstDelay = 4 * time.Millisecond

	// steadyDelay is the inter-fragment delay under light backlog.
	steadyDelay = 16 * time.Millisecond

	// idleGrace is how long an empty queue waits for stragglers
	// before the drain loop stops.
	idleGrace = 50 * time.Millisecond
)

// =============================================================================
// CHUNK QUEUE
// =============================================================================

// ChunkQueue absorbs bursts of streamed text fragments and applies
// them to a sink in strict arrival order at a bounded rate. A single
// drain goroutine runs while fragments are pending; it stops itself
// once the queue stays empty through the idle grace period, and any
// later enqueue starts a new one.
type ChunkQueue struct {
	mu       sync.Mutex
	pending  []string
	draining bool
	waiters  []chan struct{}

	sink func(string)

	// Delays are fields so tests can collapse them.
	burstDelay  time.Duration
	steadyDelay time.Duration
	idleGrace   time.Duration
}

// NewChunkQueue creates a queue that applies each drained fragment to
// sink. The sink runs on the drain goroutine.
func NewChunkQueue(sink func(string)) *ChunkQueue {
	return &ChunkQueue{
		sink:        sink,
		burstDelay:  burstDelay,
		steadyDelay: steadyDelay,
		idleGrace:   idleGrace,
	}
}

// Enqueue appends a fragment and starts the drain loop if none is
// running. Empty fragments are dropped.
func (q *ChunkQueue) Enqueue(fragment string) {
	if fragment == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, fragment)
	if !q.draining {
		q.draining = true
		go q.drain()
	}
}

// drain pops fragments head-first until the queue stays empty
// through the grace period. The delay between pops adapts to the
// backlog so bursts catch up quickly without starving renders.
func (q *ChunkQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			time.Sleep(q.idleGrace)

			q.mu.Lock()
			if len(q.pending) == 0 {
				q.draining = false
				q.notifyLocked()
				q.mu.Unlock()
				return
			}
		}

		fragment := q.pending[0]
		q.pending = q.pending[1:]
		backlog := len(q.pending)
		q.mu.Unlock()

		q.sink(fragment)

		switch {
		case backlog > burstThreshold:
			time.Sleep(q.burstDelay)
		case backlog > 0:
			time.Sleep(q.steadyDelay)
		}
	}
}

// notifyLocked wakes everything blocked on Drained. Caller holds mu.
func (q *ChunkQueue) notifyLocked() {
	for _, ch := range q.waiters {
		close(ch)
	}
	q.waiters = nil
}

// Quiescent reports whether the queue is empty and no drain loop is
// running; only then have all received fragments reached the sink.
func (q *ChunkQueue) Quiescent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && !q.draining
}

// Drained returns a channel that closes once the queue reaches
// quiescence. A queue that is already quiescent yields an
// already-closed channel.
func (q *ChunkQueue) Drained() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan struct{})
	if len(q.pending) == 0 && !q.draining {
		close(ch)
		return ch
	}
	q.waiters = append(q.waiters, ch)
	return ch
}

// WaitQuiet blocks until the queue quiesces or the context ends.
func (q *ChunkQueue) WaitQuiet(ctx context.Context) error {
	select {
	case <-q.Drained():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear discards all pending fragments without applying them. Used on
// the error path so a failed turn's partial text never renders.
func (q *ChunkQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}
