// Package hardware is the capability provider for USB/serial readers driven
// through libnfc. A polling worker turns tags in the field into discoveries
// on the event bus.
package hardware

import "github.com/dotside-studios/davi-nfc-bridge/nfc"

// Target is one tag found in the field by a scan.
type Target struct {
	UID      string
	Type     string
	TechList []string
	ATQA     string
	SAK      string
	// NDEF holds the raw NDEF messages read from the tag, if any.
	NDEF [][]byte
}

// TagInfo converts t to the payload of a TAG discovery.
func (t Target) TagInfo() nfc.TagInfo {
	return nfc.TagInfo{
		ID:       t.UID,
		Type:     t.Type,
		TechList: t.TechList,
		ATQA:     t.ATQA,
		SAK:      t.SAK,
	}
}

// Scanner polls one reader for tags.
type Scanner interface {
	// Scan returns the tags currently in the field. An error means the reader
	// is unusable and must be reopened.
	Scan() ([]Target, error)
	Close() error
	String() string
}

// Opener opens a Scanner on a libnfc connection string. An empty string
// selects the first reader found.
type Opener func(device string) (Scanner, error)
