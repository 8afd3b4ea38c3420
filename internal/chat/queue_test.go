// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastQueue returns a queue with collapsed delays so tests finish
// quickly, plus the accumulated sink output.
func fastQueue() (*ChunkQueue, func() string) {
	var mu sync.Mutex
	var out strings.Builder
	q := NewChunkQueue(func(s string) {
		mu.Lock()
		out.WriteString(s)
		mu.Unlock()
	})
	q.burstDelay = 0
	q.steadyDelay = 0
	q.idleGrace = time.Millisecond
	return q, func() string {
		mu.Lock()
		defer mu.Unlock()
		return out.String()
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	q, result := fastQueue()

	for _, frag := range []string{"a", "b", "c"} {
		q.Enqueue(frag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))
	assert.Equal(t, "abc", result())
}

func TestQueueOrderUnderBurst(t *testing.T) {
	q, result := fastQueue()

	var want strings.Builder
	for _, frag := range strings.Split("the quick brown fox jumps over the lazy dog", "") {
		want.WriteString(frag)
		q.Enqueue(frag)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))
	assert.Equal(t, want.String(), result())
}

func TestQueueQuiescence(t *testing.T) {
	q, result := fastQueue()
	assert.True(t, q.Quiescent(), "a fresh queue is quiescent")

	q.Enqueue("x")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))

	// Quiescence holds until the next enqueue.
	assert.True(t, q.Quiescent())
	assert.Equal(t, "x", result())

	q.Enqueue("y")
	require.NoError(t, q.WaitQuiet(ctx))
	assert.True(t, q.Quiescent())
	assert.Equal(t, "xy", result())
}

func TestQueueDrainedAlreadyQuiescent(t *testing.T) {
	q, _ := fastQueue()
	select {
	case <-q.Drained():
	default:
		t.Fatal("Drained on a quiescent queue must be closed immediately")
	}
}

func TestQueueRestartAfterIdle(t *testing.T) {
	q, result := fastQueue()
	q.Enqueue("first")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))

	// The drain loop has stopped; a later enqueue restarts it.
	q.Enqueue("second")
	require.NoError(t, q.WaitQuiet(ctx))
	assert.Equal(t, "firstsecond", result())
}

func TestQueueClearDropsPending(t *testing.T) {
	applied := make(chan string, 100)
	q := NewChunkQueue(func(s string) { applied <- s })
	q.idleGrace = time.Millisecond
	// A long steady delay keeps fragments pending while we clear.
	q.steadyDelay = 100 * time.Millisecond
	q.burstDelay = 100 * time.Millisecond

	for i := 0; i < 20; i++ {
		q.Enqueue("frag")
	}
	q.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))
	assert.Less(t, len(applied), 20, "cleared fragments must not reach the sink")
}

func TestQueueDropsEmptyFragments(t *testing.T) {
	q, result := fastQueue()
	q.Enqueue("")
	assert.True(t, q.Quiescent(), "empty fragments must not start a drain loop")

	q.Enqueue("a")
	q.Enqueue("")
	q.Enqueue("b")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.WaitQuiet(ctx))
	assert.Equal(t, "ab", result())
}

func TestWaitQuietHonorsContext(t *testing.T) {
	q := NewChunkQueue(func(string) {})
	// A huge grace period keeps the loop draining past the deadline.
	q.idleGrace = time.Minute
	q.Enqueue("x")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.WaitQuiet(ctx), context.DeadlineExceeded)
}
