package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrHandlerPanic wraps a panic recovered from a handler.
var ErrHandlerPanic = errors.New("event handler panicked")

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

type subscriber struct {
	name string
	fn   HandlerFunc
}

// EventBus fans events out to named subscribers. Bots publish session events
// on it; telemetry, notifications, the journal and the API stream consume
// them, and the manager listens for control commands.
type EventBus struct {
	mu       sync.RWMutex
	subs     map[EventType][]subscriber
	stopCh   chan struct{}
	stopped  bool
	inflight sync.WaitGroup
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs:   make(map[EventType][]subscriber),
		stopCh: make(chan struct{}),
	}
}

// Subscribe registers fn for eventType under name. Names identify the
// subscriber in logs and in Unsubscribe.
func (eb *EventBus) Subscribe(eventType EventType, name string, fn HandlerFunc) {
	eb.mu.Lock()
	eb.subs[eventType] = append(eb.subs[eventType], subscriber{name: name, fn: fn})
	eb.mu.Unlock()

	log.Debug().Str("event", string(eventType)).Str("handler", name).Msg("subscribed to event")
}

// SubscribeMany registers the same handler for several event types.
func (eb *EventBus) SubscribeMany(eventTypes []EventType, name string, fn HandlerFunc) {
	for _, t := range eventTypes {
		eb.Subscribe(t, name, fn)
	}
}

// Unsubscribe removes every subscriber called name from eventType.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	kept := eb.subs[eventType][:0:0]
	for _, s := range eb.subs[eventType] {
		if s.name != name {
			kept = append(kept, s)
		}
	}
	eb.subs[eventType] = kept
}

// snapshot returns the subscribers for t, or nil once the bus is stopped.
// When track is set the returned subscribers are counted as in flight
// before the lock is released, so Stop waits for them.
func (eb *EventBus) snapshot(t EventType, track bool) []subscriber {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped || len(eb.subs[t]) == 0 {
		return nil
	}
	subs := make([]subscriber, len(eb.subs[t]))
	copy(subs, eb.subs[t])
	if track {
		eb.inflight.Add(len(subs))
	}
	return subs
}

// invoke runs one subscriber, turning a panic into an error.
func invoke(ctx context.Context, s subscriber, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, s.name, r)
		}
	}()
	return s.fn(ctx, event)
}

func logFailure(s subscriber, event Event, err error) {
	log.Error().
		Err(err).
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Str("handler", s.name).
		Msg("event handler failed")
}

// Emit delivers event to every subscriber, each on its own goroutine, and
// returns without waiting. Failures are logged.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	subs := eb.snapshot(event.Type, true)
	if len(subs) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(subs)).
		Msg("emitting event")

	for _, s := range subs {
		go func() {
			defer eb.inflight.Done()
			if err := invoke(ctx, s, event); err != nil {
				logFailure(s, event, err)
			}
		}()
	}
}

// EmitSync delivers event to every subscriber concurrently and waits for
// all of them. The result joins every handler error, panics included.
func (eb *EventBus) EmitSync(ctx context.Context, event Event) error {
	subs := eb.snapshot(event.Type, false)
	if len(subs) == 0 {
		return nil
	}

	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, s := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := invoke(ctx, s, event); err != nil {
				logFailure(s, event, err)
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Stop rejects further events and waits for in-flight Emit handlers.
// It is safe to call more than once.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	close(eb.stopCh)
	eb.mu.Unlock()

	eb.inflight.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh is closed when the bus stops.
func (eb *EventBus) StopCh() <-chan struct{} {
	return eb.stopCh
}

// HandlerCount returns the number of subscribers for eventType.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subs[eventType])
}
