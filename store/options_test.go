package store_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/skadi_go/log"
	"github.com/on-the-ground/skadi_go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setOrKeep(state string, change string) (store.Effect[string, testAction, testSignal], error) {
	if value, ok := strings.CutPrefix(change, "set:"); ok {
		return store.StateOnly[string, testAction, testSignal](value), nil
	}
	return store.Same[string, testAction, testSignal](state), nil
}

func TestStore_DuplicateStatePolicy(t *testing.T) {
	tests := []struct {
		name string
		opts []store.Option
		want []string
	}{
		{
			name: "emit always",
			want: []string{"", "a", "a", "A", "b"},
		},
		{
			name: "distinct",
			opts: []store.Option{store.WithDistinctStates()},
			want: []string{"", "a", "A", "b"},
		},
		{
			name: "custom equality",
			opts: []store.Option{store.WithStateEquality(func(a, b any) bool {
				return strings.EqualFold(a.(string), b.(string))
			})},
			want: []string{"", "a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s := store.New(ctx, "", setOrKeep, nil, tt.opts...)
			states := s.States()
			transitions := s.Transitions()

			for _, change := range []string{"set:a", "keep", "set:A", "set:b"} {
				s.Perform(change)
			}
			for i := 0; i < 4; i++ {
				receive(t, transitions)
			}

			var got []string
			for range tt.want {
				got = append(got, receive(t, states))
			}
			assert.Equal(t, tt.want, got)
			assertNoValue(t, states)
		})
	}
}

func TestStore_SuppressedStateIsReplayedToNewSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.New(ctx, "", setOrKeep, nil, store.WithStateEquality(func(a, b any) bool {
		return strings.EqualFold(a.(string), b.(string))
	}))
	existing := s.States()
	transitions := s.Transitions()
	s.Perform("set:a")
	s.Perform("set:A")
	receive(t, transitions)
	receive(t, transitions)
	require.Equal(t, "A", s.CurrentState())

	assert.Equal(t, "", receive(t, existing))
	assert.Equal(t, "a", receive(t, existing))
	assertNoValue(t, existing)

	late := s.States()
	assert.Equal(t, "A", receive(t, late))
	assertNoValue(t, late)
}

func TestStore_ActionWorkersSerializeActionsPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type batch struct{ size int }
	type done struct{}

	reducer := func(state int, change any) (store.Effect[int, testAction, testSignal], error) {
		switch change := change.(type) {
		case batch:
			actions := make([]testAction, 0, change.size*2)
			for i := 0; i < change.size; i++ {
				actions = append(actions, keyedAction{key: "left", seq: i}, keyedAction{key: "right", seq: i})
			}
			return store.WithActions[int, testAction, testSignal](state, actions...), nil
		case done:
			return store.StateOnly[int, testAction, testSignal](state + 1), nil
		}
		return store.Effect[int, testAction, testSignal]{}, store.Unexpected(state, change)
	}

	const size = 10
	var mu sync.Mutex
	seen := make(map[string][]int)
	handler := func(_ context.Context, action testAction) (any, error) {
		a := action.(keyedAction)
		// earlier actions sleep longer, so unordered execution would show
		time.Sleep(time.Duration(size-a.seq) * time.Millisecond)
		mu.Lock()
		seen[a.key] = append(seen[a.key], a.seq)
		mu.Unlock()
		return done{}, nil
	}

	s := store.New(ctx, 0, reducer, handler, store.WithActionWorkers(2))
	s.Perform(batch{size: size})

	require.Eventually(t, func() bool {
		return s.CurrentState() == size*2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, want, seen["left"])
	assert.Equal(t, want, seen["right"])
}

func TestStore_LogsThroughContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, teardown := log.WithZapLogger(context.Background(), zap.New(core))
	defer teardown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs, onError := collectErrors()
	var initial testState = loading{}
	s := store.New(ctx, initial, reduce, nil, onError)
	s.PerformAction(loadData{})

	select {
	case <-errs:
	case <-time.After(time.Second):
		t.Fatal("expected an unhandled action error")
	}

	failures := logs.FilterMessage("action failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	assert.Equal(t, s.ID(), failures[0].ContextMap()["storeId"])
}

func TestStore_WithLoggerOverridesContextLogger(t *testing.T) {
	ctxCore, ctxLogs := observer.New(zapcore.DebugLevel)
	ctx, teardown := log.WithZapLogger(context.Background(), zap.New(ctxCore))
	defer teardown()

	core, logs := observer.New(zapcore.DebugLevel)
	var initial testState = loading{}
	s := store.New(ctx, initial, reduce, nil, store.WithLogger(zap.New(core)))
	s.Close()
	require.NoError(t, s.Wait())

	assert.NotZero(t, logs.FilterMessage("created store").Len())
	assert.NotZero(t, logs.FilterMessage("store stopped").Len())
	assert.Zero(t, ctxLogs.Len())
}

type recordingObserver struct {
	store.NopObserver

	mu      sync.Mutex
	reduced []string
	failed  []string
	actions []string
	signals map[string]int
}

func (o *recordingObserver) OnReduceComplete(_ context.Context, change string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed = append(o.failed, change)
		return
	}
	o.reduced = append(o.reduced, change)
}

func (o *recordingObserver) OnActionComplete(_ context.Context, action string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.actions = append(o.actions, action)
}

func (o *recordingObserver) OnSignal(_ context.Context, signal string, delivered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.signals == nil {
		o.signals = make(map[string]int)
	}
	o.signals[signal] += delivered
}

func (o *recordingObserver) snapshot() ([]string, []string, []string, map[string]int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	signals := make(map[string]int, len(o.signals))
	for k, v := range o.signals {
		signals[k] = v
	}
	return append([]string(nil), o.reduced...),
		append([]string(nil), o.failed...),
		append([]string(nil), o.actions...),
		signals
}

func TestStore_ObserverSeesEveryHook(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &recordingObserver{}
	second := &recordingObserver{}
	var initial testState = initState{}
	s := store.New(ctx, initial, reduce, loadSuccessHandler("a"),
		store.WithObserver(store.Observers(first, second)))

	states := s.States()
	signals := s.Signals()
	receive(t, states)

	s.Perform(requestData{})
	receive(t, states)
	receive(t, states)
	s.Perform(buttonClicked{})
	receive(t, signals)
	s.Perform(loadSuccess{})
	<-s.Done()

	for _, o := range []*recordingObserver{first, second} {
		reduced, failed, actions, delivered := o.snapshot()
		assert.Equal(t, []string{"store_test.requestData", "store_test.loadSuccess", "store_test.buttonClicked"}, reduced)
		assert.Equal(t, []string{"store_test.loadSuccess"}, failed)
		assert.Equal(t, []string{"store_test.loadData"}, actions)
		assert.Equal(t, map[string]int{"store_test.showMessage": 1}, delivered)
	}
}

func TestStore_SubscriptionBufferDoesNotBoundDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.New(ctx, "", setOrKeep, nil, store.WithSubscriptionBuffer(0))
	states := s.States()

	const changes = 100
	for i := 0; i < changes; i++ {
		s.Perform("set:x")
	}
	require.Eventually(t, func() bool {
		return s.CurrentState() == "x"
	}, time.Second, time.Millisecond)

	assert.Equal(t, "", receive(t, states))
	for i := 0; i < changes; i++ {
		assert.Equal(t, "x", receive(t, states))
	}
}
