package ndef

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/rs/zerolog"
)

// ErrUnknownRecord is returned when a message holds a record that is not
// Text, URI, MIME or Smart Poster. Such messages are dropped as a whole.
var ErrUnknownRecord = errors.New("ndef: unknown record type")

func errShortPayload(kind string) error {
	return fmt.Errorf("ndef: %s record payload too short", kind)
}

// Parse decodes every raw message into an NDEF discovery. Messages that fail
// to decode are skipped and logged; the discovery is still returned, with an
// empty message list if nothing could be decoded.
func Parse(raw [][]byte, logger zerolog.Logger) *nfc.Discovery {
	messages := make([][]nfc.Record, 0, len(raw))
	for i, msg := range raw {
		records, err := ParseMessage(msg)
		if err != nil {
			logger.Warn().Err(err).Int("message", i).Msg("skipping NDEF message")
			continue
		}
		messages = append(messages, records)
	}
	return nfc.NewNDEFDiscovery(messages, "")
}

// ParseMessage decodes one NDEF message into records.
func ParseMessage(raw []byte) ([]nfc.Record, error) {
	rawRecords, err := SplitRecords(raw)
	if err != nil {
		return nil, err
	}

	records := make([]nfc.Record, 0, len(rawRecords))
	for _, rr := range rawRecords {
		rec, err := decodeRecord(rr)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(rr RawRecord) (nfc.Record, error) {
	switch {
	case rr.IsWellKnown("T"):
		text, encoding, locale, err := decodeText(rr.Payload)
		if err != nil {
			return nfc.Record{}, err
		}
		return nfc.Record{Type: nfc.RecordTypeText, Data: text, Encoding: encoding, Locale: locale}, nil

	case rr.IsWellKnown("U"):
		uri, err := decodeURI(rr.Payload)
		if err != nil {
			return nfc.Record{}, err
		}
		return nfc.Record{Type: nfc.RecordTypeURI, Data: uri}, nil

	case rr.IsWellKnown("Sp"):
		return decodePoster(rr.Payload)

	case rr.TNF == TNFMedia:
		return nfc.Record{
			Type:     nfc.RecordTypeMIME,
			Data:     base64.StdEncoding.EncodeToString(rr.Payload),
			MimeType: string(rr.Type),
		}, nil
	}
	return nfc.Record{}, fmt.Errorf("%w: tnf=%d type=%q", ErrUnknownRecord, rr.TNF, rr.Type)
}

// decodeText reads a Text record payload: status byte (bit 7 = UTF-16,
// bits 0-5 = language length), language code, text.
func decodeText(payload []byte) (text, encoding, locale string, err error) {
	if len(payload) < 1 {
		return "", "", "", errShortPayload("text")
	}
	status := payload[0]
	langLength := int(status & 0x3F)
	if 1+langLength > len(payload) {
		return "", "", "", errShortPayload("text")
	}
	locale = string(payload[1 : 1+langLength])
	body := payload[1+langLength:]

	if status&0x80 == 0 {
		return string(body), "UTF-8", locale, nil
	}
	text, err = decodeUTF16(body)
	return text, "UTF-16", locale, err
}

// decodeUTF16 honours a byte order mark and defaults to big endian.
func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("ndef: invalid UTF-16 text length %d", len(b))
	}
	var order binary.ByteOrder = binary.BigEndian
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFE && b[1] == 0xFF:
			b = b[2:]
		case b[0] == 0xFF && b[1] == 0xFE:
			order = binary.LittleEndian
			b = b[2:]
		}
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// decodePoster reads a Smart Poster: the title is the first Text record of
// the nested message and the uri its first URI record. Other nested records
// (actions, icons, sizes) are ignored.
func decodePoster(payload []byte) (nfc.Record, error) {
	nested, err := SplitRecords(payload)
	if err != nil {
		return nfc.Record{}, fmt.Errorf("ndef: smart poster: %w", err)
	}

	rec := nfc.Record{Type: nfc.RecordTypePoster}
	haveTitle, haveURI := false, false
	for _, rr := range nested {
		switch {
		case rr.IsWellKnown("T") && !haveTitle:
			text, encoding, locale, err := decodeText(rr.Payload)
			if err != nil {
				return nfc.Record{}, err
			}
			rec.Data, rec.Encoding, rec.Locale = text, encoding, locale
			haveTitle = true
		case rr.IsWellKnown("U") && !haveURI:
			uri, err := decodeURI(rr.Payload)
			if err != nil {
				return nfc.Record{}, err
			}
			rec.URI = uri
			haveURI = true
		}
	}
	return rec, nil
}
