package ndef

// TextRecord builds a UTF-8 Text record. An empty lang defaults to "en".
func TextRecord(text, lang string) RawRecord {
	if lang == "" {
		lang = "en"
	}
	if len(lang) > 0x3F {
		lang = lang[:0x3F]
	}
	payload := make([]byte, 0, 1+len(lang)+len(text))
	payload = append(payload, byte(len(lang)))
	payload = append(payload, lang...)
	payload = append(payload, text...)
	return RawRecord{TNF: TNFWellKnown, Type: []byte("T"), Payload: payload}
}

// URIRecord builds a URI record using the longest matching abbreviation.
func URIRecord(uri string) RawRecord {
	return RawRecord{TNF: TNFWellKnown, Type: []byte("U"), Payload: encodeURI(uri)}
}

// MIMERecord builds a MIME media record.
func MIMERecord(mimeType string, data []byte) RawRecord {
	return RawRecord{TNF: TNFMedia, Type: []byte(mimeType), Payload: data}
}

// PosterRecord builds a Smart Poster record with a title and a URI.
func PosterRecord(title, lang, uri string) (RawRecord, error) {
	nested, err := JoinRecords([]RawRecord{TextRecord(title, lang), URIRecord(uri)})
	if err != nil {
		return RawRecord{}, err
	}
	return RawRecord{TNF: TNFWellKnown, Type: []byte("Sp"), Payload: nested}, nil
}

// EncodeText returns a single-record NDEF message holding text.
func EncodeText(text, lang string) []byte {
	msg, _ := JoinRecords([]RawRecord{TextRecord(text, lang)})
	return msg
}

// EncodeURI returns a single-record NDEF message holding uri.
func EncodeURI(uri string) []byte {
	msg, _ := JoinRecords([]RawRecord{URIRecord(uri)})
	return msg
}
