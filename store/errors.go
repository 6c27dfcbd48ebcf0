package store

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingState is returned when an effect is built without a state.
	ErrMissingState = errors.New("cannot build an effect without setting a state")

	// ErrUnhandledChange marks a (state, change) pair the reducer does not route.
	ErrUnhandledChange = errors.New("unexpected combination of state and change")

	// ErrUnhandledAction is reported when an action is dispatched on a store
	// created without an action handler.
	ErrUnhandledAction = errors.New("no action handler specified")

	// ErrReducerFailed wraps every error that stopped a reduction loop.
	ErrReducerFailed = errors.New("reducer failed")

	ErrActionPanicked  = errors.New("panic in action handler")
	ErrReducerPanicked = errors.New("panic in reducer")

	// ErrStoreCancelled is the cancellation cause recorded by Store.Close.
	// It is never reported as an error.
	ErrStoreCancelled = errors.New("store cancelled")
)

// Unexpected builds the error a reducer returns for a (state, change) pair
// it does not handle. The store treats it as fatal.
//
//	default:
//	    return Effect{}, store.Unexpected(state, change)
func Unexpected(state, change any) error {
	return fmt.Errorf("%w: state %T, change %T", ErrUnhandledChange, state, change)
}
