package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/on-the-ground/skadi_go/store/internal/handlers"
)

// Subscription delivers the values published by a store. When the store
// stops, values already queued are still delivered and then C is closed.
//
// Every subscription owns an unbounded queue, so a slow reader never stalls
// the store; it only falls behind. A reader that gives up before C is closed
// must call Cancel.
type Subscription[T any] struct {
	id     string
	out    chan T
	queue  *handlers.Mailbox[T]
	cancel context.CancelFunc
	hub    *hub[T]
}

func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Cancel detaches the subscription and closes C. Values still queued are
// dropped.
func (s *Subscription[T]) Cancel() {
	s.hub.remove(s.id)
	s.cancel()
}

func (s *Subscription[T]) pump(ctx context.Context) {
	defer close(s.out)
	s.queue.Consume(ctx, func(ctx context.Context, v T) {
		select {
		case <-ctx.Done():
		case s.out <- v:
		}
	})
}

// hub fans published values out to every live subscription. With replay set
// it also remembers the latest value and hands it to new subscribers first.
type hub[T any] struct {
	buffer int

	mu     sync.Mutex
	subs   map[string]*Subscription[T]
	closed bool
	replay bool
	latest T
}

func newHub[T any](buffer int) *hub[T] {
	return &hub[T]{
		buffer: buffer,
		subs:   make(map[string]*Subscription[T]),
	}
}

func newReplayHub[T any](buffer int, initial T) *hub[T] {
	h := newHub[T](buffer)
	h.replay = true
	h.latest = initial
	return h
}

// subscribe attaches a new subscription. On a closed hub it only receives
// the replayed value, if any, before C is closed.
func (h *hub[T]) subscribe() *Subscription[T] {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription[T]{
		id:     uuid.New().String(),
		out:    make(chan T, h.buffer),
		queue:  handlers.NewMailbox[T](),
		cancel: cancel,
		hub:    h,
	}

	h.mu.Lock()
	if h.replay {
		sub.queue.Push(h.latest)
	}
	if h.closed {
		sub.queue.Seal()
	} else {
		h.subs[sub.id] = sub
	}
	h.mu.Unlock()

	go sub.pump(ctx)
	return sub
}

// publish hands v to every current subscriber and reports how many there were.
func (h *hub[T]) publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	if h.replay {
		h.latest = v
	}
	delivered := 0
	for _, sub := range h.subs {
		if sub.queue.Push(v) {
			delivered++
		}
	}
	return delivered
}

// remember replaces the replayed value without notifying current subscribers.
func (h *hub[T]) remember(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.replay && !h.closed {
		h.latest = v
	}
}

func (h *hub[T]) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// close seals every subscription: pending values are still delivered, then
// C is closed.
func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sub := range h.subs {
		sub.queue.Seal()
	}
	clear(h.subs)
}
