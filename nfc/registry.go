package nfc

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// InitState is the registry's subscription state.
type InitState int

const (
	// Uninitialized means no provider subscription has been made yet.
	Uninitialized InitState = iota
	// Initialized means the startup query and event subscription were issued.
	// There is no transition back.
	Initialized
)

func (s InitState) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// EmptyPolicy decides what happens to discoveries that carry nothing.
type EmptyPolicy int

const (
	// EmptyDrop silently drops empty discoveries.
	EmptyDrop EmptyPolicy = iota
	// EmptyReport drops empty discoveries and reports ErrCodeEmptyDiscovery
	// to the registry's error handler.
	EmptyReport
)

// ParseEmptyPolicy maps "drop"/"report" to an EmptyPolicy. Unknown values
// fall back to EmptyDrop.
func ParseEmptyPolicy(s string) EmptyPolicy {
	if s == "report" {
		return EmptyReport
	}
	return EmptyDrop
}

func (p EmptyPolicy) String() string {
	if p == EmptyReport {
		return "report"
	}
	return "drop"
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With().Str("component", "registry").Logger()
	}
}

// WithEmptyPolicy sets how empty discoveries are handled.
func WithEmptyPolicy(policy EmptyPolicy) Option {
	return func(r *Registry) { r.emptyPolicy = policy }
}

// WithErrorHandler sets the handler that receives registry errors
// (empty discoveries under EmptyReport, recovered listener panics).
func WithErrorHandler(handler func(err error)) Option {
	return func(r *Registry) { r.onError = handler }
}

// WithListenerRecovery isolates listeners from each other: a panicking
// listener is recovered, reported to handler, and delivery continues with
// the next listener. Without this option a panic propagates to whoever
// delivered the event.
func WithListenerRecovery(handler func(recovered any)) Option {
	return func(r *Registry) {
		r.recoverListeners = true
		r.onPanic = handler
	}
}

// WithMetrics records registry activity in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry fans discoveries out from one capability provider to any number
// of in-process listeners.
//
// The first AddListener (or an explicit EnsureInitialized) asks the provider
// for startup data and subscribes to EventDiscovered on the event source.
// Both are issued exactly once for the lifetime of the registry and never
// torn down.
//
// Example:
//
//	registry := nfc.New(provider, bus)
//	registry.AddListener(func(d *nfc.Discovery) {
//	    fmt.Println("discovered:", d)
//	})
type Registry struct {
	provider Provider
	events   EventSource

	mu        sync.Mutex
	listeners []Listener

	// state only ever moves Uninitialized -> Initialized. It is not guarded
	// by mu so the provider may answer the startup query synchronously and
	// listeners may re-enter AddListener from that answer.
	state atomic.Int32

	emptyPolicy      EmptyPolicy
	onError          func(err error)
	recoverListeners bool
	onPanic          func(recovered any)
	metrics          *Metrics
	logger           zerolog.Logger
}

// New creates a Registry bound to provider and events.
func New(provider Provider, events EventSource, opts ...Option) *Registry {
	r := &Registry{
		provider: provider,
		events:   events,
		logger:   zerolog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddListener appends l to the listener list and makes sure the provider
// subscription exists. The same listener may be added more than once; it
// is then called once per registration.
func (r *Registry) AddListener(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	n := len(r.listeners)
	r.mu.Unlock()

	r.metrics.setListeners(n)
	r.logger.Debug().Int("listeners", n).Msg("listener added")

	r.EnsureInitialized()
}

// RemoveLastListener removes the most recently added listener.
// It is a no-op when no listeners are registered.
func (r *Registry) RemoveLastListener() {
	r.mu.Lock()
	if len(r.listeners) == 0 {
		r.mu.Unlock()
		return
	}
	last := len(r.listeners) - 1
	r.listeners[last] = nil
	r.listeners = r.listeners[:last]
	n := len(r.listeners)
	r.mu.Unlock()

	r.metrics.setListeners(n)
	r.logger.Debug().Int("listeners", n).Msg("listener removed")
}

// HasNFC forwards the availability probe to the provider. The answer is
// neither cached nor altered.
func (r *Registry) HasNFC(callback func(available bool)) {
	r.provider.HasNFC(callback)
}

// EnsureInitialized issues the startup query and the event subscription if
// that has not happened yet. It is safe to call any number of times.
func (r *Registry) EnsureInitialized() {
	if !r.state.CompareAndSwap(int32(Uninitialized), int32(Initialized)) {
		return
	}

	r.logger.Info().Msg("subscribing to provider")
	r.provider.GetStartUpNfcData(r.notify)
	r.events.AddListener(EventDiscovered, r.notify)
}

// State returns the current initialization state.
func (r *Registry) State() InitState {
	return InitState(r.state.Load())
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// notify is the single fan-out point registered with both the startup
// query and the event source.
func (r *Registry) notify(d *Discovery) {
	if d.IsEmpty() {
		r.metrics.dropped()
		r.logger.Debug().Msg("empty discovery dropped")
		if r.emptyPolicy == EmptyReport {
			r.reportError(NewEmptyDiscoveryError("notify"))
		}
		return
	}

	r.mu.Lock()
	snapshot := make([]Listener, len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.Unlock()

	r.metrics.delivered(d)
	r.logger.Debug().Str("discovery", d.String()).Int("listeners", len(snapshot)).Msg("fan-out")

	for i, l := range snapshot {
		if l == nil {
			continue
		}
		if r.recoverListeners {
			r.invokeRecovered(i, l, d)
			continue
		}
		l(d)
	}
}

func (r *Registry) invokeRecovered(index int, l Listener, d *Discovery) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Int("listener", index).Interface("panic", rec).Msg("listener panicked")
			if r.onPanic != nil {
				r.onPanic(rec)
			}
			r.reportError(NewListenerPanicError("notify", index, rec))
		}
	}()
	l(d)
}

func (r *Registry) reportError(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
