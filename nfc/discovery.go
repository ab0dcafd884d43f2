package nfc

import (
	"fmt"
	"time"
)

// Discovery is the payload a capability provider reports when a tag comes
// into the field, or when the adapter status changes.
//
// Type selects the populated part: Messages for DataTypeNDEF, Tag for
// DataTypeTag. Status events leave Type empty and set Status instead.
// The registry never inspects these fields beyond IsEmpty.
type Discovery struct {
	Type      DataType       `json:"type,omitempty"`
	Messages  [][]Record     `json:"data,omitempty"`
	Tag       *TagInfo       `json:"tag,omitempty"`
	Status    *AdapterStatus `json:"status,omitempty"`
	Source    string         `json:"source,omitempty"`
	ScannedAt time.Time      `json:"scannedAt,omitempty"`
}

// Record is a decoded NDEF record.
//
// Field usage per type:
//   - TEXT: Data, Encoding, Locale
//   - URI: Data
//   - MIME: Data (base64), MimeType
//   - POSTER: Data (title), Encoding, Locale, URI
type Record struct {
	Type     RecordType `json:"type"`
	Data     string     `json:"data,omitempty"`
	Encoding string     `json:"encoding,omitempty"`
	Locale   string     `json:"locale,omitempty"`
	URI      string     `json:"uri,omitempty"`
	MimeType string     `json:"mimeType,omitempty"`
}

// TagInfo describes a tag that was discovered without (readable) NDEF data.
type TagInfo struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	TechList []string `json:"techList,omitempty"`
	ATQA     string   `json:"atqa,omitempty"`
	SAK      string   `json:"sak,omitempty"`
}

// AdapterStatus reports adapter availability changes.
type AdapterStatus struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
}

// IsEmpty reports whether d carries nothing worth delivering.
// A nil Discovery is empty.
func (d *Discovery) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.Type == "" && d.Tag == nil && d.Status == nil && len(d.Messages) == 0
}

// IsStatus reports whether d is an adapter status event.
func (d *Discovery) IsStatus() bool {
	return d != nil && d.Status != nil
}

// ID returns the tag ID for TAG discoveries, or "" otherwise.
func (d *Discovery) ID() string {
	if d == nil || d.Tag == nil {
		return ""
	}
	return d.Tag.ID
}

// String returns a short description of the discovery.
func (d *Discovery) String() string {
	switch {
	case d == nil:
		return "Discovery{<nil>}"
	case d.Status != nil:
		return fmt.Sprintf("Discovery{Status: %s %s}", d.Status.Kind, d.Status.Message)
	case d.Type == DataTypeTag && d.Tag != nil:
		return fmt.Sprintf("Discovery{Type: %s, ID: %s}", d.Type, d.Tag.ID)
	default:
		return fmt.Sprintf("Discovery{Type: %s, Messages: %d}", d.Type, len(d.Messages))
	}
}

// NewTagDiscovery builds a TAG discovery.
func NewTagDiscovery(tag TagInfo, source string) *Discovery {
	return &Discovery{
		Type:      DataTypeTag,
		Tag:       &tag,
		Source:    source,
		ScannedAt: time.Now(),
	}
}

// NewNDEFDiscovery builds an NDEF discovery from decoded messages.
func NewNDEFDiscovery(messages [][]Record, source string) *Discovery {
	if messages == nil {
		messages = [][]Record{}
	}
	return &Discovery{
		Type:      DataTypeNDEF,
		Messages:  messages,
		Source:    source,
		ScannedAt: time.Now(),
	}
}

// NewStatusDiscovery builds an adapter status event.
func NewStatusDiscovery(kind, message, source string) *Discovery {
	return &Discovery{
		Status:    &AdapterStatus{Kind: kind, Message: message},
		Source:    source,
		ScannedAt: time.Now(),
	}
}
