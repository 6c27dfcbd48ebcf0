package store

import (
	"context"
	"time"
)

// Observer receives instrumentation hooks from a store.
//
// Start hooks may return a derived context (e.g. carrying a span); the store
// hands it to the matching Complete hook and, for actions, to the action
// handler. Hooks are called from the reduction loop and from action
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	OnReduceStart(ctx context.Context, change string) context.Context
	OnReduceComplete(ctx context.Context, change string, duration time.Duration, err error)
	OnActionStart(ctx context.Context, action string) context.Context
	OnActionComplete(ctx context.Context, action string, duration time.Duration, err error)
	OnSignal(ctx context.Context, signal string, delivered int)
}

// NopObserver ignores every hook.
type NopObserver struct{}

func (NopObserver) OnReduceStart(ctx context.Context, _ string) context.Context { return ctx }

func (NopObserver) OnReduceComplete(context.Context, string, time.Duration, error) {}

func (NopObserver) OnActionStart(ctx context.Context, _ string) context.Context { return ctx }

func (NopObserver) OnActionComplete(context.Context, string, time.Duration, error) {}

func (NopObserver) OnSignal(context.Context, string, int) {}

// Observers fans every hook out to obs, in order. Contexts returned by start
// hooks are threaded through the chain.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) OnReduceStart(ctx context.Context, change string) context.Context {
	for _, o := range m {
		ctx = o.OnReduceStart(ctx, change)
	}
	return ctx
}

func (m multiObserver) OnReduceComplete(ctx context.Context, change string, d time.Duration, err error) {
	for _, o := range m {
		o.OnReduceComplete(ctx, change, d, err)
	}
}

func (m multiObserver) OnActionStart(ctx context.Context, action string) context.Context {
	for _, o := range m {
		ctx = o.OnActionStart(ctx, action)
	}
	return ctx
}

func (m multiObserver) OnActionComplete(ctx context.Context, action string, d time.Duration, err error) {
	for _, o := range m {
		o.OnActionComplete(ctx, action, d, err)
	}
}

func (m multiObserver) OnSignal(ctx context.Context, signal string, delivered int) {
	for _, o := range m {
		o.OnSignal(ctx, signal, delivered)
	}
}
