// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within todoq.
package eventbus

import (
	"context"
	"sync"
)

// Event identifies an event type on the bus.
type Event string

const (
	EventTodoCreated       Event = "todo.created"
	EventTodoStatusChanged Event = "todo.status-changed"
	EventTodoDeleted       Event = "todo.deleted"
	EventCronReset         Event = "cron.reset"
	EventReportGenerated   Event = "report.generated"
	EventDispatchFailed    Event = "dispatch.failed"
)

// envelope pairs an event name with its payload for transport on the
// internal channel.
type envelope struct {
	event   Event
	payload any
}

// EventBus is a buffered, typed publish/subscribe bus. Publishing never
// blocks: when the buffer is full the event is dropped and the OnDrop hooks
// fire. Subscribers run sequentially on the bus goroutine; a panicking
// subscriber is recovered and reported via the OnPanic hooks.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu                  sync.RWMutex
	onTodoCreated       []func(TodoCreatedPayload)
	onTodoStatusChanged []func(TodoStatusChangedPayload)
	onTodoDeleted       []func(TodoDeletedPayload)
	onCronReset         []func(CronResetPayload)
	onReportGenerated   []func(ReportGeneratedPayload)
	onDispatchFailed    []func(DispatchFailedPayload)
}

// New creates an EventBus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{ch: make(chan envelope, buffer)}
}

// Start dispatches events to subscribers until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			bus.runOnPanic(env.event, env.payload, r)
		}
	}()

	bus.mu.RLock()
	defer bus.mu.RUnlock()

	switch p := env.payload.(type) {
	case TodoCreatedPayload:
		for _, fn := range bus.onTodoCreated {
			fn(p)
		}
	case TodoStatusChangedPayload:
		for _, fn := range bus.onTodoStatusChanged {
			fn(p)
		}
	case TodoDeletedPayload:
		for _, fn := range bus.onTodoDeleted {
			fn(p)
		}
	case CronResetPayload:
		for _, fn := range bus.onCronReset {
			fn(p)
		}
	case ReportGeneratedPayload:
		for _, fn := range bus.onReportGenerated {
			fn(p)
		}
	case DispatchFailedPayload:
		for _, fn := range bus.onDispatchFailed {
			fn(p)
		}
	}
}

func (bus *EventBus) PublishTodoCreated(p TodoCreatedPayload) {
	bus.send(EventTodoCreated, p)
}

func (bus *EventBus) SubscribeTodoCreated(fn func(TodoCreatedPayload)) {
	bus.mu.Lock()
	bus.onTodoCreated = append(bus.onTodoCreated, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventTodoCreated)
}

func (bus *EventBus) PublishTodoStatusChanged(p TodoStatusChangedPayload) {
	bus.send(EventTodoStatusChanged, p)
}

func (bus *EventBus) SubscribeTodoStatusChanged(fn func(TodoStatusChangedPayload)) {
	bus.mu.Lock()
	bus.onTodoStatusChanged = append(bus.onTodoStatusChanged, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventTodoStatusChanged)
}

func (bus *EventBus) PublishTodoDeleted(p TodoDeletedPayload) {
	bus.send(EventTodoDeleted, p)
}

func (bus *EventBus) SubscribeTodoDeleted(fn func(TodoDeletedPayload)) {
	bus.mu.Lock()
	bus.onTodoDeleted = append(bus.onTodoDeleted, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventTodoDeleted)
}

func (bus *EventBus) PublishCronReset(p CronResetPayload) {
	bus.send(EventCronReset, p)
}

func (bus *EventBus) SubscribeCronReset(fn func(CronResetPayload)) {
	bus.mu.Lock()
	bus.onCronReset = append(bus.onCronReset, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventCronReset)
}

func (bus *EventBus) PublishReportGenerated(p ReportGeneratedPayload) {
	bus.send(EventReportGenerated, p)
}

func (bus *EventBus) SubscribeReportGenerated(fn func(ReportGeneratedPayload)) {
	bus.mu.Lock()
	bus.onReportGenerated = append(bus.onReportGenerated, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventReportGenerated)
}

func (bus *EventBus) PublishDispatchFailed(p DispatchFailedPayload) {
	bus.send(EventDispatchFailed, p)
}

func (bus *EventBus) SubscribeDispatchFailed(fn func(DispatchFailedPayload)) {
	bus.mu.Lock()
	bus.onDispatchFailed = append(bus.onDispatchFailed, fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(EventDispatchFailed)
}
