package handlers

import (
	"context"
	"sync"
)

// Mailbox is an unbounded FIFO drained by a single consumer.
//
// Push never blocks. Messages are handed to the consumer in the order they
// were pushed, one at a time.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues msg. It reports false if the mailbox is already closed.
func (m *Mailbox[T]) Push(msg T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Close drops pending messages and rejects further pushes.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
}

// Seal rejects further pushes but keeps pending messages: Consume hands them
// out and then returns.
func (m *Mailbox[T]) Seal() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) pop() (msg T, ok bool, sealed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return msg, false, m.closed
	}
	msg = m.items[0]
	var zero T
	m.items[0] = zero
	m.items = m.items[1:]
	return msg, true, m.closed
}

// Consume hands every message to handleFn until ctx is done, or until the
// mailbox is sealed and empty, then closes the mailbox. It must be called by
// exactly one goroutine.
func (m *Mailbox[T]) Consume(ctx context.Context, handleFn func(context.Context, T)) {
	defer m.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.notify:
		}
		for {
			if ctx.Err() != nil {
				return
			}
			msg, ok, sealed := m.pop()
			if !ok {
				if sealed {
					return
				}
				break
			}
			handleFn(ctx, msg)
		}
	}
}

// --- partitioned queue ---

// PartitionedQueue routes messages to one of several mailboxes by key, so
// messages sharing a key are consumed in order by the same worker.
type PartitionedQueue[T any] struct {
	mailboxes []*Mailbox[T]
}

func NewPartitionedQueue[T any](numWorkers int) *PartitionedQueue[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	mailboxes := make([]*Mailbox[T], numWorkers)
	for i := range mailboxes {
		mailboxes[i] = NewMailbox[T]()
	}
	return &PartitionedQueue[T]{mailboxes: mailboxes}
}

// Dispatch pushes msg to the mailbox owning key.
func (pq *PartitionedQueue[T]) Dispatch(key string, msg T) bool {
	return pq.mailboxes[getIndexByHash(key, len(pq.mailboxes))].Push(msg)
}

// Workers returns one consume function per partition. Each must be run on
// its own goroutine.
func (pq *PartitionedQueue[T]) Workers(handleFn func(context.Context, T)) []func(context.Context) {
	workers := make([]func(context.Context), len(pq.mailboxes))
	for i, mb := range pq.mailboxes {
		workers[i] = func(ctx context.Context) {
			mb.Consume(ctx, handleFn)
		}
	}
	return workers
}
