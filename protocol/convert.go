package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

var hexUID = regexp.MustCompile(`^[0-9A-F]+$`)

// NormalizeUID converts a UID in any of the common notations to plain
// uppercase hex, the form hardware readers report.
// Supports: "04:AB:CD:EF", "04abcdef", "04 AB CD EF", "04-AB-CD-EF"
func NormalizeUID(uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("empty UID")
	}

	cleaned := strings.NewReplacer(":", "", " ", "", "-", "").Replace(uid)
	cleaned = strings.ToUpper(cleaned)

	if !hexUID.MatchString(cleaned) {
		return "", fmt.Errorf("UID contains invalid characters: %s", uid)
	}
	if len(cleaned)%2 != 0 {
		return "", fmt.Errorf("UID has odd number of hex characters: %s", uid)
	}
	return cleaned, nil
}

// InferTechnology guesses the NFC technology family from a tag type name.
func InferTechnology(tagType string) string {
	upperType := strings.ToUpper(tagType)
	switch {
	case strings.Contains(upperType, "MIFARE"),
		strings.Contains(upperType, "NTAG"),
		strings.Contains(upperType, "DESFIRE"):
		return "ISO14443A"
	case strings.Contains(upperType, "TYPE4"):
		return "ISO14443A/B"
	case strings.Contains(upperType, "FELICA"):
		return "ISO18092"
	case strings.Contains(upperType, "ISO15693"):
		return "ISO15693"
	default:
		return "Unknown"
	}
}
