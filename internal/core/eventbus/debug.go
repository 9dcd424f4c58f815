package eventbus

import "github.com/rs/zerolog"

// AttachLogger wires the bus lifecycle hooks to a zerolog logger. Dropped
// events and subscriber panics are the signals worth alerting on; publishes
// are logged at debug level only.
func AttachLogger(bus *EventBus, log zerolog.Logger) {
	bus.OnPublish(func(event Event, _ any) {
		log.Debug().Str("event", string(event)).Msg("event published")
	})
	bus.OnDrop(func(event Event, _ any) {
		log.Warn().Str("event", string(event)).Msg("event dropped, bus buffer full")
	})
	bus.OnPanic(func(event Event, _ any, recovered any) {
		log.Error().Str("event", string(event)).Any("panic", recovered).Msg("event subscriber panicked")
	})
}
