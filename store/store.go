package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/skadi_go/log"
	"github.com/on-the-ground/skadi_go/store/internal/handlers"
	"github.com/on-the-ground/skadi_go/store/internal/supervisor"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Reducer translates the current state and a change into an Effect.
//
// It runs on the reduction loop, one change at a time, and must not block.
// A non-nil error is fatal to the store.
type Reducer[S, C, A, G any] func(state S, change C) (Effect[S, A, G], error)

// ActionHandler performs an action and resolves it to the change that is fed
// back into the store. It runs on its own goroutine and may block; ctx is
// cancelled when the store's context ends.
//
// A non-nil error is reported on the store's error channel and no change is
// performed.
type ActionHandler[A, C any] func(ctx context.Context, action A) (C, error)

// Store owns the current state S and serializes every change C through its
// reducer. Actions A produced by the reducer run concurrently through the
// action handler; signals G are published to current subscribers only.
type Store[S, C, A, G any] struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc
	opts   options
	logger *zap.Logger

	reducer      Reducer[S, C, A, G]
	handleAction ActionHandler[A, C]

	current    atomic.Pointer[S]
	changes    *handlers.Mailbox[C]
	partitions *handlers.PartitionedQueue[A]
	sv         *supervisor.Supervisor

	states      *hub[S]
	signals     *hub[G]
	transitions *hub[Transition[S, C]]

	errMu sync.Mutex
	err   error

	done chan struct{}
}

// New creates a store holding initial and starts its reduction loop.
//
// All goroutines the store spawns are children of ctx. Cancelling ctx stops
// the loop and abandons in-flight actions; subscriptions drain and close. A nil
// handleAction makes every dispatched action fail with ErrUnhandledAction.
//
// Usage:
//
//	var initial ViewState = Loading{}
//	s := store.New(ctx, initial, reduce, handleAction)
//	s.PerformAction(LoadMovies{})
func New[S, C, A, G any](
	ctx context.Context,
	initial S,
	reducer Reducer[S, C, A, G],
	handleAction ActionHandler[A, C],
	opts ...Option,
) *Store[S, C, A, G] {
	o := newOptions(opts)
	ctx, cancel := context.WithCancelCause(ctx)

	if handleAction == nil {
		handleAction = unhandledAction[A, C]
	}

	s := &Store[S, C, A, G]{
		id:           uuid.New().String(),
		ctx:          ctx,
		cancel:       cancel,
		opts:         o,
		reducer:      reducer,
		handleAction: handleAction,
		changes:      handlers.NewMailbox[C](),
		states:       newReplayHub(o.subscriptionBuffer, initial),
		signals:      newHub[G](o.subscriptionBuffer),
		transitions:  newHub[Transition[S, C]](o.subscriptionBuffer),
		done:         make(chan struct{}),
	}

	logger := o.logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	s.logger = logger.With(zap.String("storeId", s.id))

	s.current.Store(&initial)
	s.sv = supervisor.New(ctx, s.onActionPanic)

	if o.actionWorkers > 0 {
		s.partitions = handlers.NewPartitionedQueue[A](o.actionWorkers)
		for _, worker := range s.partitions.Workers(s.runPartitionedAction) {
			s.sv.Go(worker)
		}
	}

	go s.loop()

	s.logger.Debug("created store", zap.Int("actionWorkers", o.actionWorkers))
	return s
}

// ID returns the unique id of the store, as used in its log entries.
func (s *Store[S, C, A, G]) ID() string {
	return s.id
}

// Perform enqueues change for reduction and returns immediately. Changes are
// reduced one at a time in the order they were enqueued. After the store has
// stopped the change is dropped.
func (s *Store[S, C, A, G]) Perform(change C) {
	if !s.changes.Push(change) {
		s.logger.Debug("store stopped, dropped change", zap.String("change", typeName(change)))
	}
}

// PerformAction runs action through the action handler without consulting
// the reducer. The resulting change is performed like any other.
func (s *Store[S, C, A, G]) PerformAction(action A) {
	s.dispatch(action)
}

// CurrentState returns the most recently installed state.
func (s *Store[S, C, A, G]) CurrentState() S {
	return *s.current.Load()
}

// States subscribes to the current state and every later transition. After
// the store has stopped it delivers only the last installed state.
func (s *Store[S, C, A, G]) States() *Subscription[S] {
	return s.states.subscribe()
}

// Signals subscribes to signals published from now on. Signals published
// while nobody is subscribed are lost.
func (s *Store[S, C, A, G]) Signals() *Subscription[G] {
	return s.signals.subscribe()
}

// Transitions subscribes to every reduction applied from now on.
func (s *Store[S, C, A, G]) Transitions() *Subscription[Transition[S, C]] {
	return s.transitions.subscribe()
}

// Done is closed once the reduction loop has stopped. Subscriptions then
// deliver what they still hold, ending with the last installed state, and
// close.
func (s *Store[S, C, A, G]) Done() <-chan struct{} {
	return s.done
}

// Close stops the store as if its context had been cancelled, recording
// ErrStoreCancelled as the cause.
func (s *Store[S, C, A, G]) Close() {
	s.cancel(ErrStoreCancelled)
}

// Wait blocks until the store has stopped and its in-flight action handlers
// have returned, then returns Err.
func (s *Store[S, C, A, G]) Wait() error {
	<-s.done
	s.sv.Wait()
	return s.Err()
}

// Err returns every error reported so far, combined with multierr. Use
// multierr.Errors to split it.
func (s *Store[S, C, A, G]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Store[S, C, A, G]) loop() {
	defer close(s.done)
	defer func() {
		s.states.close()
		s.signals.close()
		s.transitions.close()
		s.logger.Debug("store stopped", zap.NamedError("cause", context.Cause(s.ctx)))
	}()

	s.changes.Consume(s.ctx, s.reduce)
}

func (s *Store[S, C, A, G]) reduce(ctx context.Context, change C) {
	from := s.CurrentState()
	changeName := typeName(change)

	obsCtx := s.opts.observer.OnReduceStart(ctx, changeName)
	started := time.Now()
	effect, err := s.safeReduce(from, change)
	finished := time.Now()
	s.opts.observer.OnReduceComplete(obsCtx, changeName, finished.Sub(started), err)

	if err != nil {
		s.fail(err)
		return
	}

	to := effect.state
	s.current.Store(&to)
	if s.opts.distinct && s.opts.equal(from, to) {
		s.states.remember(to)
	} else {
		s.states.publish(to)
	}
	s.transitions.publish(Transition[S, C]{
		From:   from,
		To:     to,
		Change: change,
		Span:   newTimeSpan(started, finished),
	})

	for _, action := range effect.actions {
		s.dispatch(action)
	}
	for _, signal := range effect.signals {
		delivered := s.signals.publish(signal)
		s.opts.observer.OnSignal(ctx, typeName(signal), delivered)
		if delivered == 0 {
			s.logger.Debug("no subscriber, dropped signal", zap.String("signal", typeName(signal)))
		}
	}
}

func (s *Store[S, C, A, G]) safeReduce(state S, change C) (effect Effect[S, A, G], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: reducing %T in state %T: %w", ErrReducerFailed, change, state, panicError(ErrReducerPanicked, r))
		}
	}()

	effect, err = s.reducer(state, change)
	if err == nil && !effect.hasState {
		err = ErrMissingState
	}
	if err != nil {
		return effect, fmt.Errorf("%w: reducing %T in state %T: %w", ErrReducerFailed, change, state, err)
	}
	return effect, nil
}

// fail stops the store after a reducer error.
func (s *Store[S, C, A, G]) fail(err error) {
	s.logger.Error("reducer failed, stopping store", zap.Error(err))
	s.report(err)
	s.cancel(err)
}

func (s *Store[S, C, A, G]) report(err error) {
	s.errMu.Lock()
	s.err = multierr.Append(s.err, err)
	s.errMu.Unlock()

	if s.opts.onError != nil {
		s.opts.onError(err)
	}
}

func (s *Store[S, C, A, G]) dispatch(action A) {
	if s.partitions != nil {
		if p, ok := any(action).(Partitionable); ok {
			if !s.partitions.Dispatch(p.PartitionKey(), action) {
				s.logger.Debug("store stopped, dropped action", zap.String("action", typeName(action)))
			}
			return
		}
	}

	if !s.sv.Go(func(ctx context.Context) { s.runAction(ctx, action) }) {
		s.logger.Debug("store stopped, dropped action", zap.String("action", typeName(action)))
	}
}

func (s *Store[S, C, A, G]) runPartitionedAction(_ context.Context, action A) {
	s.sv.Call(func(ctx context.Context) { s.runAction(ctx, action) })
}

func (s *Store[S, C, A, G]) runAction(ctx context.Context, action A) {
	actionName := typeName(action)

	obsCtx := s.opts.observer.OnActionStart(ctx, actionName)
	started := time.Now()
	returned := false
	defer func() {
		// the panic itself is reported by the supervisor
		if !returned {
			s.opts.observer.OnActionComplete(obsCtx, actionName, time.Since(started), ErrActionPanicked)
		}
	}()
	change, err := s.handleAction(obsCtx, action)
	returned = true
	s.opts.observer.OnActionComplete(obsCtx, actionName, time.Since(started), err)

	if ctx.Err() != nil {
		s.logger.Debug("store stopped, dropped result of action", zap.String("action", actionName))
		return
	}
	if err != nil {
		err = fmt.Errorf("action %s: %w", actionName, err)
		s.logger.Error("action failed", zap.Error(err))
		s.report(err)
		return
	}
	s.Perform(change)
}

func (s *Store[S, C, A, G]) onActionPanic(r any) {
	err := panicError(ErrActionPanicked, r)
	s.logger.Error("panic in action handler", zap.Error(err))
	s.report(err)
}

func unhandledAction[A, C any](_ context.Context, action A) (C, error) {
	var zero C
	return zero, fmt.Errorf("%w, but %T was passed as a side effect", ErrUnhandledAction, action)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func panicError(sentinel error, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %v", sentinel, r)
}
