package nfc

// Listener receives discoveries fanned out by a Registry.
type Listener func(d *Discovery)

// Provider is the capability provider that talks to NFC hardware.
//
// Both methods answer through the callback and may do so synchronously
// or later from another goroutine.
//
// Example:
//
//	provider.HasNFC(func(available bool) {
//	    fmt.Println("nfc available:", available)
//	})
type Provider interface {
	// GetStartUpNfcData invokes callback exactly once with data that was
	// pending before anyone subscribed, or nil if there was none.
	GetStartUpNfcData(callback func(d *Discovery))

	// HasNFC invokes callback exactly once with the adapter availability.
	HasNFC(callback func(available bool))
}

// EventSource delivers provider events to in-process handlers.
type EventSource interface {
	// AddListener registers handler for every future event named eventName.
	AddListener(eventName string, handler func(d *Discovery))
}
