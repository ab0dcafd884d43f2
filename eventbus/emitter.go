// Package eventbus is the in-process named-event emitter providers publish
// discoveries on. It satisfies nfc.EventSource.
package eventbus

import (
	"sync"

	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/rs/zerolog"
)

// Handler receives the payload of an emitted event.
type Handler func(d *nfc.Discovery)

// Emitter dispatches named events to handlers in registration order.
// Handlers are called synchronously on the emitting goroutine.
type Emitter struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// New creates an empty Emitter.
func New(logger zerolog.Logger) *Emitter {
	return &Emitter{
		handlers: make(map[string][]Handler),
		logger:   logger.With().Str("component", "eventbus").Logger(),
	}
}

// AddListener registers handler for eventName. Nil handlers are ignored.
func (e *Emitter) AddListener(eventName string, handler func(d *nfc.Discovery)) {
	if handler == nil {
		return
	}

	e.mu.Lock()
	e.handlers[eventName] = append(e.handlers[eventName], handler)
	n := len(e.handlers[eventName])
	e.mu.Unlock()

	e.logger.Debug().Str("event", eventName).Int("handlers", n).Msg("handler registered")
}

// Emit delivers d to every handler registered for eventName and returns how
// many were called. Handlers registered while Emit runs are not called.
func (e *Emitter) Emit(eventName string, d *nfc.Discovery) int {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers[eventName]))
	copy(handlers, e.handlers[eventName])
	e.mu.RUnlock()

	for _, h := range handlers {
		h(d)
	}
	return len(handlers)
}

// ListenerCount returns the number of handlers registered for eventName.
func (e *Emitter) ListenerCount(eventName string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[eventName])
}

var _ nfc.EventSource = (*Emitter)(nil)
