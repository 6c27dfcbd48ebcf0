// Package store provides a state container that serializes every mutation
// of an application's state through a single reducer, while side effects run
// concurrently and feed their results back into the same serialized stream.
//
// # Protocol
//
// A Store owns the current state. Callers hand it changes with Perform; a
// single reduction loop passes each change, together with the current state,
// to the Reducer, one at a time and in enqueue order. The reducer returns an
// Effect: the next state, actions to perform and signals to publish.
//
//   - The new state is installed and published before anything else happens.
//   - Every action runs on its own goroutine through the ActionHandler, and the
//     change it resolves to is performed like any other.
//   - Every signal is delivered to the subscribers attached at that moment.
//     Nobody listening means the signal is lost.
//
// Perform and PerformAction never block. The reducer never runs concurrently
// with itself, so it can be written as an ordinary pure function; long work
// belongs in action handlers.
//
// # Scoping
//
// All goroutines belong to the context passed to New. Cancelling it stops the
// reduction loop and cancels in-flight action handlers, dropping their results.
// Subscription channels then deliver the values already queued for them,
// ending with the last installed state, and close.
//
// # Errors
//
// A reducer error is fatal: the store stops and reports it. Action failures
// are isolated: they are reported through WithErrorHandler and Err but never
// affect other actions or the reduction loop.
//
// Example:
//
//	type ViewState interface{ viewState() }
//	type Change interface{ change() }
//
//	func reduce(state ViewState, change Change) (Effect, error) {
//	    switch state := state.(type) {
//	    case Loading:
//	        if change, ok := change.(MoviesLoaded); ok {
//	            return store.StateOnly[ViewState, Action, Signal](DisplayMovies{change.Movies}), nil
//	        }
//	    }
//	    return Effect{}, store.Unexpected(state, change)
//	}
//
//	var initial ViewState = Loading{}
//	s := store.New(ctx, initial, reduce, handleAction)
//	s.PerformAction(LoadMovies{})
package store
