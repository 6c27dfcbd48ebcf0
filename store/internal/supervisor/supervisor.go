package supervisor

import (
	"context"
	"sync"
)

// Supervisor manages the lifecycle of child goroutines spawned on behalf of a
// store.
//
// Every child runs under the supervisor's context, so cancelling that context
// reaches all of them. Panics are recovered per child and handed to onPanic;
// a panicking child never takes down its siblings.
type Supervisor struct {
	ctx     context.Context
	onPanic func(recovered any)

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func New(ctx context.Context, onPanic func(recovered any)) *Supervisor {
	if onPanic == nil {
		onPanic = func(any) {}
	}
	return &Supervisor{
		ctx:     ctx,
		onPanic: onPanic,
	}
}

// Go starts fn in its own goroutine. It reports false, without running fn,
// once the context is done or Wait has been called.
func (s *Supervisor) Go(fn func(context.Context)) bool {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.Call(fn)
	}()
	return true
}

// Call runs fn on the calling goroutine with the same panic recovery as Go.
func (s *Supervisor) Call(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.onPanic(r)
		}
	}()
	fn(s.ctx)
}

// Wait stops accepting children and blocks until the running ones return.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
