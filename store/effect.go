package store

import (
	"fmt"
	"slices"
)

// Effect is the outcome of a reducer: the next state, the actions to perform
// as side effects and the one-shot signals to publish.
//
// An Effect is immutable. Build one with EffectBuilder or one of the
// constructor functions; the zero Effect carries no state and is rejected by
// the store with ErrMissingState.
type Effect[S, A, G any] struct {
	state    S
	hasState bool
	actions  []A
	signals  []G
}

func (e Effect[S, A, G]) State() S {
	return e.state
}

// HasState reports whether the effect was built with a state.
func (e Effect[S, A, G]) HasState() bool {
	return e.hasState
}

func (e Effect[S, A, G]) Actions() []A {
	return slices.Clone(e.actions)
}

func (e Effect[S, A, G]) Signals() []G {
	return slices.Clone(e.signals)
}

func (e Effect[S, A, G]) String() string {
	return fmt.Sprintf("Effect{state: %+v, actions: %d, signals: %d}", e.state, len(e.actions), len(e.signals))
}

// StateOnly creates an effect that moves to state and does nothing else.
func StateOnly[S, A, G any](state S) Effect[S, A, G] {
	return Effect[S, A, G]{state: state, hasState: true}
}

// Same keeps the current state. It is StateOnly under a name that reads
// better in reducers.
func Same[S, A, G any](state S) Effect[S, A, G] {
	return StateOnly[S, A, G](state)
}

func WithActions[S, A, G any](state S, actions ...A) Effect[S, A, G] {
	return Effect[S, A, G]{state: state, hasState: true, actions: slices.Clone(actions)}
}

func WithAction[S, A, G any](state S, action A) Effect[S, A, G] {
	return Effect[S, A, G]{state: state, hasState: true, actions: []A{action}}
}

func WithSignals[S, A, G any](state S, signals ...G) Effect[S, A, G] {
	return Effect[S, A, G]{state: state, hasState: true, signals: slices.Clone(signals)}
}

func WithSignal[S, A, G any](state S, signal G) Effect[S, A, G] {
	return Effect[S, A, G]{state: state, hasState: true, signals: []G{signal}}
}

// SignalFrom keeps state and publishes a single signal.
func SignalFrom[S, A, G any](state S, signal G) Effect[S, A, G] {
	return WithSignal[S, A](state, signal)
}

// EffectBuilder accumulates the pieces of an Effect.
//
// State must be set before Build. For actions and signals the last call
// wins: Action replaces whatever Actions set before, and vice versa.
type EffectBuilder[S, A, G any] struct {
	state    S
	hasState bool
	actions  []A
	signals  []G
}

func NewEffectBuilder[S, A, G any]() *EffectBuilder[S, A, G] {
	return &EffectBuilder[S, A, G]{}
}

func (b *EffectBuilder[S, A, G]) State(state S) *EffectBuilder[S, A, G] {
	b.state = state
	b.hasState = true
	return b
}

func (b *EffectBuilder[S, A, G]) Actions(actions ...A) *EffectBuilder[S, A, G] {
	b.actions = slices.Clone(actions)
	return b
}

func (b *EffectBuilder[S, A, G]) Action(action A) *EffectBuilder[S, A, G] {
	b.actions = []A{action}
	return b
}

func (b *EffectBuilder[S, A, G]) Signals(signals ...G) *EffectBuilder[S, A, G] {
	b.signals = slices.Clone(signals)
	return b
}

func (b *EffectBuilder[S, A, G]) Signal(signal G) *EffectBuilder[S, A, G] {
	b.signals = []G{signal}
	return b
}

// Build returns the effect, or ErrMissingState if State was never called.
func (b *EffectBuilder[S, A, G]) Build() (Effect[S, A, G], error) {
	if !b.hasState {
		return Effect[S, A, G]{}, fmt.Errorf("%w: please set a state before calling Build()", ErrMissingState)
	}
	return Effect[S, A, G]{
		state:    b.state,
		hasState: true,
		actions:  slices.Clone(b.actions),
		signals:  slices.Clone(b.signals),
	}, nil
}

// MustBuild is the panic-on-failure variant of Build.
func (b *EffectBuilder[S, A, G]) MustBuild() Effect[S, A, G] {
	effect, err := b.Build()
	if err != nil {
		panic(err)
	}
	return effect
}

// NewEffect runs fn against a fresh builder and builds the result.
//
//	effect, err := store.NewEffect(func(b *store.EffectBuilder[State, Action, Signal]) {
//	    b.State(Loading{}).Action(LoadMovies{})
//	})
func NewEffect[S, A, G any](fn func(b *EffectBuilder[S, A, G])) (Effect[S, A, G], error) {
	b := NewEffectBuilder[S, A, G]()
	fn(b)
	return b.Build()
}
