package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	got := make(chan Event, 2)
	bus.Subscribe(EventBanned, "a", func(_ context.Context, e Event) error {
		got <- e
		return nil
	})
	bus.Subscribe(EventBanned, "b", func(_ context.Context, e Event) error {
		got <- e
		return nil
	})
	bus.Subscribe(EventRedirect, "c", func(_ context.Context, e Event) error {
		t.Error("unexpected delivery")
		return nil
	})

	bus.Emit(context.Background(), New(EventBanned, "bot1", BannedPayload{Message: "currently banned"}))

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			assert.Equal(t, "bot1", e.Source)
			assert.Equal(t, BannedPayload{Message: "currently banned"}, e.Payload)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestEmitSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	boom := errors.New("boom")
	bus.Subscribe(EventRedirect, "fails", func(context.Context, Event) error { return boom })
	bus.Subscribe(EventRedirect, "panics", func(context.Context, Event) error { panic("bad handler") })

	err := bus.EmitSync(context.Background(), New(EventRedirect, "bot1", nil))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestSubscribeManyAndUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var calls atomic.Int32
	bus.SubscribeMany(SessionEvents, "journal", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	for _, et := range SessionEvents {
		assert.Equal(t, 1, bus.HandlerCount(et))
	}

	require.NoError(t, bus.EmitSync(context.Background(), New(EventWorldLoaded, "bot1", nil)))
	require.NoError(t, bus.EmitSync(context.Background(), New(EventBanned, "bot1", nil)))
	assert.Equal(t, int32(2), calls.Load())

	bus.Unsubscribe(EventBanned, "journal")
	assert.Zero(t, bus.HandlerCount(EventBanned))
}

func TestStoppedBusDropsEvents(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	bus.Subscribe(EventBanned, "x", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	bus.Stop()
	bus.Stop()

	bus.Emit(context.Background(), New(EventBanned, "bot1", nil))
	assert.NoError(t, bus.EmitSync(context.Background(), New(EventBanned, "bot1", nil)))
	assert.Zero(t, calls.Load())

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
}
