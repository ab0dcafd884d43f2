package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dotside-studios/davi-nfc-bridge/protocol"
)

// HandlerFunc handles one client request. Errors are logged by the caller;
// the handler is responsible for answering the client.
type HandlerFunc func(ctx context.Context, c *client, req protocol.Request) error

// HandlerRegistry maps client message types to handlers.
type HandlerRegistry struct {
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers handler for messageType.
// Returns an error if a handler for the same message type is already registered.
func (r *HandlerRegistry) Handle(messageType string, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if messageType == "" {
		return fmt.Errorf("message type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[messageType]; exists {
		return fmt.Errorf("handler for message type '%s' already registered", messageType)
	}
	r.handlers[messageType] = handler
	return nil
}

// Get retrieves the handler for messageType.
func (r *HandlerRegistry) Get(messageType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[messageType]
	return handler, ok
}

// MessageTypes returns all registered message types, sorted.
func (r *HandlerRegistry) MessageTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
