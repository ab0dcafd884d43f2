package hardware

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
	"github.com/dotside-studios/davi-nfc-bridge/ndef"
	"github.com/rs/zerolog"
)

// Ultralight user memory starts at page 4. Pages 0-3 hold UID, lock bytes and
// the capability container.
const (
	ultralightFirstPage  = 4
	ultralightPages      = 16
	ultralightCPages     = 48
	iso14443_4SAKBit     = 0x20
	techISO14443A        = "ISO14443A"
	techISO14443_4       = "ISO14443-4"
	techMifareUltralight = "MifareUltralight"
	techMifareClassic    = "MifareClassic"
	techDESFire          = "IsoDep"
)

type libnfcScanner struct {
	device nfc.Device
	logger zerolog.Logger
}

// OpenLibNFC returns an Opener backed by libnfc and libfreefare.
func OpenLibNFC(logger zerolog.Logger) Opener {
	return func(device string) (Scanner, error) {
		dev, err := nfc.Open(device)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", device, err)
		}
		if err := dev.InitiatorInit(); err != nil {
			dev.Close()
			return nil, fmt.Errorf("initiator init: %w", err)
		}
		return &libnfcScanner{device: dev, logger: logger}, nil
	}
}

// ListDevices returns the connection strings of attached readers.
func ListDevices() ([]string, error) {
	return nfc.ListDevices()
}

func (s *libnfcScanner) String() string {
	return s.device.String()
}

func (s *libnfcScanner) Close() error {
	return s.device.Close()
}

// Scan asks libfreefare for the tags it knows first, then lists passive
// ISO14443A targets to pick up anything freefare skipped.
func (s *libnfcScanner) Scan() ([]Target, error) {
	var targets []Target
	seen := make(map[string]bool)

	ffTags, ffErr := freefare.GetTags(s.device)
	if ffErr != nil {
		s.logger.Debug().Err(ffErr).Msg("freefare scan failed")
	}
	for _, tag := range ffTags {
		uid := strings.ToUpper(tag.UID())
		if seen[uid] {
			continue
		}
		seen[uid] = true
		targets = append(targets, s.describe(uid, tag))
	}

	modulation := nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}
	passive, err := s.device.InitiatorListPassiveTargets(modulation)
	if err != nil {
		if ffErr != nil {
			return nil, fmt.Errorf("freefare (%v) and passive targets: %w", ffErr, err)
		}
		s.logger.Debug().Err(err).Msg("listing passive targets failed")
		return targets, nil
	}

	for _, target := range passive {
		isoA, ok := target.(*nfc.ISO14443aTarget)
		if !ok || isoA.UIDLen <= 0 || int(isoA.UIDLen) > len(isoA.UID) {
			continue
		}
		uid := strings.ToUpper(hex.EncodeToString(isoA.UID[:isoA.UIDLen]))
		if seen[uid] {
			continue
		}
		seen[uid] = true

		tech := []string{techISO14443A}
		if isoA.Sak&iso14443_4SAKBit != 0 {
			tech = append(tech, techISO14443_4)
		}
		targets = append(targets, Target{
			UID:      uid,
			Type:     "ISO14443A",
			TechList: tech,
			ATQA:     strings.ToUpper(hex.EncodeToString(isoA.Atqa[:])),
			SAK:      fmt.Sprintf("%02X", isoA.Sak),
		})
	}

	return targets, nil
}

func (s *libnfcScanner) describe(uid string, tag freefare.Tag) Target {
	switch t := tag.(type) {
	case freefare.UltralightTag:
		target := Target{UID: uid, Type: ultralightName(t), TechList: []string{techISO14443A, techMifareUltralight}}
		msg, err := readUltralightNDEF(t)
		if err != nil {
			s.logger.Warn().Err(err).Str("uid", uid).Msg("reading NDEF failed")
		} else if msg != nil {
			target.NDEF = [][]byte{msg}
		}
		return target
	case freefare.ClassicTag:
		return Target{UID: uid, Type: "MIFARE Classic", TechList: []string{techISO14443A, techMifareClassic}}
	case freefare.DESFireTag:
		return Target{UID: uid, Type: "MIFARE DESFire", TechList: []string{techISO14443A, techDESFire}}
	default:
		return Target{UID: uid, Type: fmt.Sprintf("freefare type %d", tag.Type()), TechList: []string{techISO14443A}}
	}
}

func ultralightName(t freefare.UltralightTag) string {
	if t.Type() == freefare.UltralightC {
		return "MIFARE Ultralight C"
	}
	return "MIFARE Ultralight"
}

// readUltralightNDEF reads user memory and returns the NDEF message, or nil
// if the tag carries none.
func readUltralightNDEF(t freefare.UltralightTag) ([]byte, error) {
	if err := t.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer t.Disconnect()

	last := byte(ultralightPages)
	if t.Type() == freefare.UltralightC {
		last = ultralightCPages
	}

	var memory []byte
	for page := byte(ultralightFirstPage); page < last; page++ {
		data, err := t.ReadPage(page)
		if err != nil {
			if len(memory) == 0 {
				return nil, fmt.Errorf("read page %d: %w", page, err)
			}
			break
		}
		memory = append(memory, data[:]...)
	}

	msg, ok := ndef.FindNDEF(memory)
	if !ok || len(msg) == 0 {
		return nil, nil
	}
	return msg, nil
}
