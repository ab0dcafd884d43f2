package ndef

// TLV block types found in Type 2 tag memory.
const (
	TLVNull        byte = 0x00
	TLVLockCtrl    byte = 0x01
	TLVMemCtrl     byte = 0x02
	TLVNDEF        byte = 0x03
	TLVProprietary byte = 0xFD
	TLVTerminator  byte = 0xFE
)

// tlvLength reads the length field of the TLV starting at data[0] (the type
// byte). It returns the value length and the offset where the value starts,
// or ok=false when the header is truncated.
func tlvLength(data []byte) (length, valueStart int, ok bool) {
	if len(data) < 2 {
		return 0, 0, false
	}
	if data[1] == 0xFF {
		if len(data) < 4 {
			return 0, 0, false
		}
		return int(data[2])<<8 | int(data[3]), 4, true
	}
	return int(data[1]), 2, true
}

// FindNDEF locates the first NDEF Message TLV in raw tag memory and returns
// its value. NULL TLVs are skipped, other TLVs are stepped over, and the
// search ends at the terminator.
func FindNDEF(memory []byte) ([]byte, bool) {
	offset := 0
	for offset < len(memory) {
		switch memory[offset] {
		case TLVNull:
			offset++
			continue
		case TLVTerminator:
			return nil, false
		}

		length, valueStart, ok := tlvLength(memory[offset:])
		if !ok {
			return nil, false
		}
		start := offset + valueStart
		if start+length > len(memory) {
			return nil, false
		}
		if memory[offset] == TLVNDEF {
			return memory[start : start+length], true
		}
		offset = start + length
	}
	return nil, false
}

// WrapNDEF wraps msg in an NDEF Message TLV followed by a terminator, the
// layout written to Type 2 tag memory.
func WrapNDEF(msg []byte) []byte {
	out := []byte{TLVNDEF}
	if len(msg) < 0xFF {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, 0xFF, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	return append(out, TLVTerminator)
}
