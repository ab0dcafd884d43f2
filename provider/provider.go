// Package provider holds the pieces shared by capability providers: the
// one-shot startup slot and the publish path onto the event bus.
package provider

import (
	"sync"

	"github.com/dotside-studios/davi-nfc-bridge/nfc"
)

// Emitter publishes named events. *eventbus.Emitter satisfies it.
type Emitter interface {
	Emit(eventName string, d *nfc.Discovery) int
}

// StartupSlot keeps the discovery that arrived before anyone subscribed, so
// the first subscriber can still see the tag that woke the bridge up.
// Take hands it out once; every later Take returns nil.
type StartupSlot struct {
	mu    sync.Mutex
	data  *nfc.Discovery
	taken bool
}

// Offer stores d if the slot is still open and empty. Status events are not
// kept. It reports whether d was stored.
func (s *StartupSlot) Offer(d *nfc.Discovery) bool {
	if d.IsEmpty() || d.IsStatus() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken || s.data != nil {
		return false
	}
	s.data = d
	return true
}

// Take returns the stored discovery the first time it is called and nil on
// every call after that, whether or not anything was stored.
func (s *StartupSlot) Take() *nfc.Discovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken {
		return nil
	}
	s.taken = true
	d := s.data
	s.data = nil
	return d
}

// Taken reports whether Take has been called.
func (s *StartupSlot) Taken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken
}

// Publish offers d to slot and emits it as EventDiscovered on emitter. A nil
// slot or emitter is skipped. It returns the number of handlers reached.
func Publish(slot *StartupSlot, emitter Emitter, d *nfc.Discovery) int {
	if slot != nil {
		slot.Offer(d)
	}
	if emitter == nil {
		return 0
	}
	return emitter.Emit(nfc.EventDiscovered, d)
}

// AdapterReady builds the INFO ADAPTER_READY status event.
func AdapterReady(source string) *nfc.Discovery {
	return nfc.NewStatusDiscovery(nfc.StatusKindInfo, nfc.StatusAdapterReady, source)
}

// NoAdapter builds the ERROR NO_ADAPTER_ERROR status event.
func NoAdapter(source string) *nfc.Discovery {
	return nfc.NewStatusDiscovery(nfc.StatusKindError, nfc.StatusNoAdapter, source)
}
