package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Type Name Format values.
const (
	TNFEmpty     byte = 0x00
	TNFWellKnown byte = 0x01
	TNFMedia     byte = 0x02
	TNFAbsURI    byte = 0x03
	TNFExternal  byte = 0x04
	TNFUnknown   byte = 0x05
	TNFUnchanged byte = 0x06
)

// Record header flags.
const (
	flagMB byte = 0x80 // Message Begin
	flagME byte = 0x40 // Message End
	flagCF byte = 0x20 // Chunk Flag
	flagSR byte = 0x10 // Short Record
	flagIL byte = 0x08 // ID Length present
)

var (
	// ErrEmptyMessage is returned for a zero-length message.
	ErrEmptyMessage = errors.New("ndef: empty message")
	// ErrChunked is returned for chunked records, which are not reassembled.
	ErrChunked = errors.New("ndef: chunked records are not supported")
)

// RawRecord is a single undecoded NDEF record.
type RawRecord struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// IsWellKnown reports whether r is a well-known record of type t.
func (r RawRecord) IsWellKnown(t string) bool {
	return r.TNF == TNFWellKnown && string(r.Type) == t
}

// SplitRecords parses raw NDEF message bytes into records. Parsing stops at
// the record carrying the ME flag; trailing bytes are ignored.
func SplitRecords(msg []byte) ([]RawRecord, error) {
	if len(msg) == 0 {
		return nil, ErrEmptyMessage
	}

	var records []RawRecord
	offset := 0

	for offset < len(msg) {
		header := msg[offset]
		if header&flagCF != 0 {
			return nil, ErrChunked
		}
		pos := offset + 1

		if pos >= len(msg) {
			return nil, fmt.Errorf("ndef: truncated type length at offset %d", pos)
		}
		typeLength := int(msg[pos])
		pos++

		var payloadLength int
		if header&flagSR != 0 {
			if pos >= len(msg) {
				return nil, fmt.Errorf("ndef: truncated payload length at offset %d", pos)
			}
			payloadLength = int(msg[pos])
			pos++
		} else {
			if pos+4 > len(msg) {
				return nil, fmt.Errorf("ndef: truncated payload length at offset %d", pos)
			}
			payloadLength = int(binary.BigEndian.Uint32(msg[pos : pos+4]))
			pos += 4
		}

		var idLength int
		if header&flagIL != 0 {
			if pos >= len(msg) {
				return nil, fmt.Errorf("ndef: truncated ID length at offset %d", pos)
			}
			idLength = int(msg[pos])
			pos++
		}

		if pos+typeLength+idLength > len(msg) || payloadLength > len(msg)-pos-typeLength-idLength {
			return nil, fmt.Errorf("ndef: record at offset %d overruns message", offset)
		}

		rec := RawRecord{TNF: header & 0x07}
		rec.Type = append([]byte(nil), msg[pos:pos+typeLength]...)
		pos += typeLength
		if idLength > 0 {
			rec.ID = append([]byte(nil), msg[pos:pos+idLength]...)
			pos += idLength
		}
		rec.Payload = append([]byte(nil), msg[pos:pos+payloadLength]...)
		pos += payloadLength

		records = append(records, rec)
		offset = pos

		if header&flagME != 0 {
			break
		}
	}

	return records, nil
}

// JoinRecords encodes records into one NDEF message, setting MB on the first
// record, ME on the last and SR wherever the payload fits in a byte.
func JoinRecords(records []RawRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	for i, rec := range records {
		if len(rec.Type) > 0xFF || len(rec.ID) > 0xFF {
			return nil, fmt.Errorf("ndef: record %d type or ID too long", i)
		}

		header := rec.TNF & 0x07
		if i == 0 {
			header |= flagMB
		}
		if i == len(records)-1 {
			header |= flagME
		}
		short := len(rec.Payload) <= 0xFF
		if short {
			header |= flagSR
		}
		if len(rec.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(rec.Type)))
		if short {
			out = append(out, byte(len(rec.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(rec.Payload)))
		}
		if len(rec.ID) > 0 {
			out = append(out, byte(len(rec.ID)))
		}
		out = append(out, rec.Type...)
		out = append(out, rec.ID...)
		out = append(out, rec.Payload...)
	}
	return out, nil
}
