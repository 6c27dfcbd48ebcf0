package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/skadi_go/store/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test that Mailbox hands messages to the consumer in push order.
func TestMailbox_ConsumesInPushOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := handlers.NewMailbox[int]()

	var (
		mu       sync.Mutex
		consumed []int
		wg       sync.WaitGroup
	)
	wg.Add(100)
	go mb.Consume(ctx, func(_ context.Context, msg int) {
		defer wg.Done()
		mu.Lock()
		consumed = append(consumed, msg)
		mu.Unlock()
	})

	for i := 0; i < 100; i++ {
		require.True(t, mb.Push(i))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range consumed {
		if v != i {
			t.Fatalf("expected message %d at position %d, got %d", i, i, v)
		}
	}
}

// Test that Push does not block while the consumer is busy.
func TestMailbox_PushNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := handlers.NewMailbox[int]()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	go mb.Consume(ctx, func(_ context.Context, msg int) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})

	mb.Push(0)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("consumer did not start")
	}

	pushed := make(chan struct{})
	go func() {
		for i := 1; i <= 10_000; i++ {
			mb.Push(i)
		}
		close(pushed)
	}()

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push blocked behind a busy consumer")
	}
	assert.Equal(t, 10_000, mb.Len())
	close(release)
}

// Test that the mailbox rejects pushes once its consumer has stopped.
func TestMailbox_RejectsPushAfterConsumerStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mb := handlers.NewMailbox[string]()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		mb.Consume(ctx, func(context.Context, string) {})
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}

	assert.False(t, mb.Push("late"))
	assert.Equal(t, 0, mb.Len())
}

// Test that messages with the same key are processed in order by one worker.
func TestPartitionedQueue_OrderIsPreservedForSameKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu        sync.Mutex
		processed = make(map[string][]int)
		wg        sync.WaitGroup
	)
	type msg struct {
		key string
		seq int
	}

	pq := handlers.NewPartitionedQueue[msg](3)
	for _, worker := range pq.Workers(func(_ context.Context, m msg) {
		defer wg.Done()
		mu.Lock()
		processed[m.key] = append(processed[m.key], m.seq)
		mu.Unlock()
	}) {
		go worker(ctx)
	}

	wg.Add(10)
	for i := 0; i < 5; i++ {
		pq.Dispatch("groupA", msg{key: "groupA", seq: i})
		pq.Dispatch("groupB", msg{key: "groupB", seq: i})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, processed["groupA"])
	assert.Equal(t, []int{0, 1, 2, 3, 4}, processed["groupB"])
}

// Test that a sealed mailbox hands out what is pending before its consumer returns.
func TestMailbox_SealDrainsPendingMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := handlers.NewMailbox[int]()
	for i := 0; i < 5; i++ {
		require.True(t, mb.Push(i))
	}
	mb.Seal()
	assert.False(t, mb.Push(99))

	var consumed []int
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		mb.Consume(ctx, func(_ context.Context, msg int) {
			consumed = append(consumed, msg)
		})
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("consumer did not return after draining a sealed mailbox")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, consumed)
}
