package store

import (
	"reflect"

	"go.uber.org/zap"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger             *zap.Logger
	observer           Observer
	distinct           bool
	equal              func(a, b any) bool
	onError            func(error)
	actionWorkers      int // default: 0, one goroutine per action
	subscriptionBuffer int // default: 1
}

func newOptions(opts []Option) options {
	o := options{
		observer:           NopObserver{},
		equal:              reflect.DeepEqual,
		subscriptionBuffer: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.equal == nil {
		o.equal = reflect.DeepEqual
	}
	if o.actionWorkers < 0 {
		o.actionWorkers = 0
	}
	if o.subscriptionBuffer < 0 {
		o.subscriptionBuffer = 0
	}
	return o
}

// WithLogger sets the store's logger. Without it the store uses the logger
// registered in its context by log.WithZapLogger, or a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithDistinctStates suppresses State subscription emissions that are equal
// to the previously published state. Equality is reflect.DeepEqual unless
// WithStateEquality says otherwise.
func WithDistinctStates() Option {
	return func(o *options) {
		o.distinct = true
	}
}

// WithStateEquality enables distinct states using equal as the comparison.
func WithStateEquality(equal func(a, b any) bool) Option {
	return func(o *options) {
		o.distinct = true
		o.equal = equal
	}
}

// WithErrorHandler registers the unhandled-error channel of the store. It is
// called once for every failed action and for the fatal reducer error, from
// whichever goroutine hit the error.
func WithErrorHandler(handler func(error)) Option {
	return func(o *options) {
		o.onError = handler
	}
}

// WithActionWorkers routes actions implementing Partitionable to one of n
// workers by hashing their PartitionKey, so actions sharing a key run in
// order. Other actions keep running on their own goroutine.
func WithActionWorkers(n int) Option {
	return func(o *options) {
		o.actionWorkers = n
	}
}

// WithSubscriptionBuffer sets the capacity of each subscription channel.
// Delivery behind the channel stays unbounded.
func WithSubscriptionBuffer(n int) Option {
	return func(o *options) {
		o.subscriptionBuffer = n
	}
}

// Partitionable is implemented by actions that must be serialized per key
// when the store runs with WithActionWorkers.
type Partitionable interface {
	PartitionKey() string
}
