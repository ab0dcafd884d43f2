package provider

import (
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/rs/zerolog"
)

// Entry is a named provider for NewMulti.
type Entry struct {
	Name     string
	Provider nfc.Provider
}

// Multi aggregates several providers behind one nfc.Provider. The
// aggregated providers are expected to publish on the same event bus.
//
// Example:
//
//	mp := provider.NewMulti(logger,
//	    provider.Entry{Name: "hardware", Provider: hw},
//	    provider.Entry{Name: "remote", Provider: rp},
//	)
type Multi struct {
	entries []Entry
	logger  zerolog.Logger
}

// NewMulti creates a Multi querying providers in the given order. Entries
// without a name or provider, and duplicate names, are skipped.
func NewMulti(logger zerolog.Logger, entries ...Entry) *Multi {
	m := &Multi{logger: logger.With().Str("component", "multi").Logger()}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Name == "" || e.Provider == nil {
			m.logger.Warn().Str("name", e.Name).Msg("skipping invalid provider entry")
			continue
		}
		if seen[e.Name] {
			m.logger.Warn().Str("name", e.Name).Msg("skipping duplicate provider")
			continue
		}
		seen[e.Name] = true
		m.entries = append(m.entries, e)
		m.logger.Debug().Str("name", e.Name).Msg("provider registered")
	}
	return m
}

// Names returns the aggregated provider names in query order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Name
	}
	return names
}

// GetStartUpNfcData asks every provider for its startup data and answers
// callback once with the first non-empty one, or nil. Every provider is
// asked so that each slot is consumed. Providers must answer synchronously.
func (m *Multi) GetStartUpNfcData(callback func(*nfc.Discovery)) {
	var first *nfc.Discovery
	for _, e := range m.entries {
		e.Provider.GetStartUpNfcData(func(d *nfc.Discovery) {
			if first == nil && !d.IsEmpty() {
				first = d
			}
		})
	}
	callback(first)
}

// HasNFC answers true when any aggregated provider has NFC available.
// Providers must answer synchronously.
func (m *Multi) HasNFC(callback func(bool)) {
	available := false
	for _, e := range m.entries {
		e.Provider.HasNFC(func(ok bool) {
			available = available || ok
		})
	}
	callback(available)
}
