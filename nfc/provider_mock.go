package nfc

import (
	"fmt"
	"sync"
)

// MockProvider is a test implementation of Provider.
//
// By default GetStartUpNfcData answers synchronously with StartupData.
// Set DeferStartup to capture the callback instead and answer later with
// CompleteStartup, the way a real provider answers from another goroutine.
//
// Example:
//
//	provider := &MockProvider{Available: true}
//	registry := New(provider, NewMockEventSource())
type MockProvider struct {
	// StartupData is passed to the startup callback.
	StartupData *Discovery

	// DeferStartup holds the startup callback until CompleteStartup is called.
	DeferStartup bool

	// Available is reported by HasNFC.
	Available bool

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	startupCallbacks []func(*Discovery)
	mu               sync.Mutex
}

// NewMockProvider creates a MockProvider that reports NFC as available.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Available: true,
		CallLog:   make([]string, 0),
	}
}

// GetStartUpNfcData implements Provider.
func (m *MockProvider) GetStartUpNfcData(callback func(*Discovery)) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "GetStartUpNfcData")
	if m.DeferStartup {
		m.startupCallbacks = append(m.startupCallbacks, callback)
		m.mu.Unlock()
		return
	}
	data := m.StartupData
	m.mu.Unlock()

	callback(data)
}

// HasNFC implements Provider.
func (m *MockProvider) HasNFC(callback func(bool)) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "HasNFC")
	available := m.Available
	m.mu.Unlock()

	callback(available)
}

// CompleteStartup answers every deferred startup callback with d.
func (m *MockProvider) CompleteStartup(d *Discovery) {
	m.mu.Lock()
	callbacks := m.startupCallbacks
	m.startupCallbacks = nil
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(d)
	}
}

// CallCount returns how many times method was called.
func (m *MockProvider) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, call := range m.CallLog {
		if call == method {
			count++
		}
	}
	return count
}

// MockEventSource is a test implementation of EventSource that lets tests
// fire events at whatever handlers were registered.
type MockEventSource struct {
	// CallLog tracks all method calls for verification in tests
	CallLog []string

	handlers map[string][]func(*Discovery)
	mu       sync.Mutex
}

// NewMockEventSource creates an empty MockEventSource.
func NewMockEventSource() *MockEventSource {
	return &MockEventSource{
		CallLog:  make([]string, 0),
		handlers: make(map[string][]func(*Discovery)),
	}
}

// AddListener implements EventSource.
func (m *MockEventSource) AddListener(eventName string, handler func(*Discovery)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("AddListener(%s)", eventName))
	m.handlers[eventName] = append(m.handlers[eventName], handler)
}

// Fire delivers d to every handler registered for eventName.
func (m *MockEventSource) Fire(eventName string, d *Discovery) {
	m.mu.Lock()
	handlers := append([]func(*Discovery){}, m.handlers[eventName]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(d)
	}
}

// CallCount returns how many times AddListener was called for eventName.
func (m *MockEventSource) CallCount(eventName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := fmt.Sprintf("AddListener(%s)", eventName)
	count := 0
	for _, call := range m.CallLog {
		if call == want {
			count++
		}
	}
	return count
}
