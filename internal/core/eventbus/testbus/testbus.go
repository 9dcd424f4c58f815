// Package testbus provides test utilities for the event bus.
// It wraps a real EventBus with event recording and assertion helpers.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/todoq/internal/core/eventbus"
)

// RecordedEvent holds a captured event name and payload.
type RecordedEvent struct {
	Event   eventbus.Event
	Payload any
}

// Bus wraps a real EventBus with event recording for tests.
type Bus struct {
	*eventbus.EventBus
	cancel context.CancelFunc

	mu     sync.Mutex
	events []RecordedEvent
}

// New creates a test bus, starts it in a background goroutine, and
// subscribes to all event types for recording. The bus is stopped
// when the test completes.
func New(t *testing.T) *Bus {
	t.Helper()

	bus := eventbus.New(64)
	ctx, cancel := context.WithCancel(context.Background())

	tb := &Bus{
		EventBus: bus,
		cancel:   cancel,
	}

	bus.SubscribeTodoCreated(func(p eventbus.TodoCreatedPayload) {
		tb.record(eventbus.EventTodoCreated, p)
	})
	bus.SubscribeTodoStatusChanged(func(p eventbus.TodoStatusChangedPayload) {
		tb.record(eventbus.EventTodoStatusChanged, p)
	})
	bus.SubscribeTodoDeleted(func(p eventbus.TodoDeletedPayload) {
		tb.record(eventbus.EventTodoDeleted, p)
	})
	bus.SubscribeCronReset(func(p eventbus.CronResetPayload) {
		tb.record(eventbus.EventCronReset, p)
	})
	bus.SubscribeReportGenerated(func(p eventbus.ReportGeneratedPayload) {
		tb.record(eventbus.EventReportGenerated, p)
	})
	bus.SubscribeDispatchFailed(func(p eventbus.DispatchFailedPayload) {
		tb.record(eventbus.EventDispatchFailed, p)
	})

	go bus.Start(ctx)

	t.Cleanup(func() {
		cancel()
	})

	return tb
}

func (b *Bus) record(event eventbus.Event, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, RecordedEvent{Event: event, Payload: payload})
}

// Events returns a copy of all recorded events.
func (b *Bus) Events() []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedEvent, len(b.events))
	copy(out, b.events)
	return out
}

// WaitFor blocks until an event with the given name has been recorded, or
// the timeout elapses. Returns the first matching event and whether one
// was found.
func (b *Bus) WaitFor(event eventbus.Event, timeout time.Duration) (RecordedEvent, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		for _, ev := range b.events {
			if ev.Event == event {
				b.mu.Unlock()
				return ev, true
			}
		}
		b.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	return RecordedEvent{}, false
}

// Count returns the number of recorded events with the given name.
func (b *Bus) Count(event eventbus.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Event == event {
			n++
		}
	}
	return n
}
