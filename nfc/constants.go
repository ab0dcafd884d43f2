package nfc

// DataType tags the kind of data a discovery carries.
type DataType string

// Data type constants reported by capability providers.
const (
	DataTypeNDEF DataType = "NDEF"
	DataTypeTag  DataType = "TAG"
)

// RecordType tags a decoded NDEF record.
type RecordType string

// NDEF record type constants.
const (
	RecordTypeText   RecordType = "TEXT"
	RecordTypeURI    RecordType = "URI"
	RecordTypeMIME   RecordType = "MIME"
	RecordTypePoster RecordType = "POSTER"
)

// EventDiscovered is the event name providers emit on the event source
// whenever a tag or NDEF message is discovered.
const EventDiscovered = "__NFC_DISCOVERED"

// Adapter status kinds and messages emitted by providers when the
// adapter comes up or goes away.
const (
	StatusKindInfo  = "INFO"
	StatusKindError = "ERROR"

	StatusAdapterReady = "ADAPTER_READY"
	StatusNoAdapter    = "NO_ADAPTER_ERROR"
)

// AllDataTypes returns all data type constants.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypeNDEF,
		DataTypeTag,
	}
}

// AllRecordTypes returns all record type constants.
func AllRecordTypes() []RecordType {
	return []RecordType{
		RecordTypeText,
		RecordTypeURI,
		RecordTypeMIME,
		RecordTypePoster,
	}
}
