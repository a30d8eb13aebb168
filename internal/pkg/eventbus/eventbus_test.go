package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case evt, ok := <-s.C:
		require.True(t, ok, "канал закрыт")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
		return Event{}
	}
}

func TestBus_PublishDoesNotBlockAndKeepsOrder(t *testing.T) {
	bus := New()
	defer bus.Close()
	sub := bus.Subscribe()

	// Никто не читает канал, Publish всё равно не блокируется.
	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: ErrorOccurred, Payload: i})
	}

	for i := 0; i < 100; i++ {
		evt := receive(t, sub)
		assert.Equal(t, i, evt.Payload)
		assert.False(t, evt.Time.IsZero())
	}
}

func TestBus_Filter(t *testing.T) {
	bus := New()
	defer bus.Close()
	sub := bus.Subscribe(ShutdownRequired)

	bus.Publish(Event{Type: ErrorOccurred})
	bus.Publish(Event{Type: ShutdownRequired, Payload: "x"})

	evt := receive(t, sub)
	assert.Equal(t, ShutdownRequired, evt.Type)
	assert.Equal(t, "x", evt.Payload)
}

func TestBus_FanOut(t *testing.T) {
	bus := New()
	defer bus.Close()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Type: CrashDetected})

	assert.Equal(t, CrashDetected, receive(t, a).Type)
	assert.Equal(t, CrashDetected, receive(t, b).Type)
}

func TestSubscription_Close(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	sub.Close()

	bus.Publish(Event{Type: ErrorOccurred})

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("канал не закрыт")
	}
	sub.Close()
}

func TestBus_Close(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Close()
	bus.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
	bus.Publish(Event{Type: ErrorOccurred})
}

func TestBus_SubscribeFunc(t *testing.T) {
	bus := New()
	defer bus.Close()

	var mu sync.Mutex
	var got []Type
	cancel := bus.SubscribeFunc(func(evt Event) {
		mu.Lock()
		got = append(got, evt.Type)
		mu.Unlock()
	}, RestartRequired, SafeModeRequired)

	bus.Publish(Event{Type: RestartRequired})
	bus.Publish(Event{Type: ErrorHandled})
	bus.Publish(Event{Type: SafeModeRequired})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	mu.Lock()
	assert.Equal(t, []Type{RestartRequired, SafeModeRequired}, got)
	mu.Unlock()
}

func TestBus_SubscribeFuncCancelDeliversQueued(t *testing.T) {
	bus := New()
	defer bus.Close()

	var delivered atomic.Int64
	cancel := bus.SubscribeFunc(func(Event) {
		delivered.Add(1)
	}, ShutdownRequired)

	const n = 1000
	for range n {
		bus.Publish(Event{Type: ShutdownRequired})
	}
	cancel()

	assert.Equal(t, int64(n), delivered.Load())
	bus.Publish(Event{Type: ShutdownRequired})
	assert.Equal(t, int64(n), delivered.Load())
}

func TestSubscription_CloseDeliversQueued(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	for i := range 3 {
		bus.Publish(Event{Type: ErrorOccurred, Payload: i})
	}
	sub.Close()
	bus.Publish(Event{Type: ErrorOccurred, Payload: 99})

	var got []any
	for evt := range sub.C {
		got = append(got, evt.Payload)
	}
	assert.Equal(t, []any{0, 1, 2}, got)
}

func TestBus_CloseDeliversQueued(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Publish(Event{Type: CrashDetected})
	bus.Publish(Event{Type: ShutdownRequired})
	bus.Close()

	var got []Type
	for evt := range sub.C {
		got = append(got, evt.Type)
	}
	assert.Equal(t, []Type{CrashDetected, ShutdownRequired}, got)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(Event{Type: AlertTriggered})
	r.Publish(Event{Type: ErrorHandled})

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(AlertTriggered), 1)
	Nop{}.Publish(Event{})
}
