// Package tray shows the bridge in the system tray: NFC availability, the
// last discovery and a Quit item.
package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dotside-studios/davi-nfc-bridge/nfc"
)

// Status is the tray's availability indicator.
type Status int

const (
	StatusStarting Status = iota
	StatusAvailable
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "NFC: Available"
	case StatusUnavailable:
		return "NFC: Unavailable"
	default:
		return "Starting..."
	}
}

// State holds what the tray menu displays. It is updated from registry
// listeners and availability probes, and read by the menu refresher.
type State struct {
	mu     sync.Mutex
	status Status
	last   *nfc.Discovery
	count  int
}

// SetAvailable records an availability answer. It reports whether the
// status changed.
func (s *State) SetAvailable(available bool) bool {
	next := StatusUnavailable
	if available {
		next = StatusAvailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.status != next
	s.status = next
	return changed
}

// Observe records a discovery. Adapter status events update availability;
// everything else becomes the last discovery.
func (s *State) Observe(d *nfc.Discovery) {
	if d.IsEmpty() {
		return
	}
	if d.IsStatus() {
		s.SetAvailable(d.Status.Message == nfc.StatusAdapterReady)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = d
	s.count++
}

// Status returns the current availability indicator.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Count returns the number of discoveries observed.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// LastTitle describes the last discovery for the menu.
func (s *State) LastTitle() string {
	s.mu.Lock()
	d := s.last
	s.mu.Unlock()

	if d == nil {
		return "Last: None"
	}
	switch d.Type {
	case nfc.DataTypeTag:
		if d.Tag != nil && d.Tag.Type != "" {
			return fmt.Sprintf("Last: TAG %s (%s)", d.Tag.ID, d.Tag.Type)
		}
		return fmt.Sprintf("Last: TAG %s", d.ID())
	case nfc.DataTypeNDEF:
		return fmt.Sprintf("Last: NDEF %s", summarizeRecords(d.Messages))
	}
	return "Last: " + d.String()
}

// summarizeRecords lists the record types of the first message, e.g.
// "TEXT, URI".
func summarizeRecords(messages [][]nfc.Record) string {
	if len(messages) == 0 || len(messages[0]) == 0 {
		return "(empty)"
	}
	types := make([]string, 0, len(messages[0]))
	for _, r := range messages[0] {
		types = append(types, string(r.Type))
	}
	summary := strings.Join(types, ", ")
	if len(messages) > 1 {
		summary += fmt.Sprintf(" +%d", len(messages)-1)
	}
	return summary
}
