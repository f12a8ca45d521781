package sim

// Event defines the interface for all simulation events.
// Each event must have a Timestamp (in ticks) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Execute()
}

// CallbackEvent wraps an arbitrary closure as an event. It is the generic
// escape hatch for operators and tests; the engine itself schedules named
// event types (message deliveries, protocol steps) so traces stay readable.
type CallbackEvent struct {
	Time int64
	Fn   func()
}

// Timestamp returns the scheduled time of the CallbackEvent.
func (e *CallbackEvent) Timestamp() int64 {
	return e.Time
}

// Execute invokes the wrapped closure.
func (e *CallbackEvent) Execute() {
	e.Fn()
}
