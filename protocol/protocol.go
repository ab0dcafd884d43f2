// Package protocol defines the JSON messages exchanged over the bridge's
// WebSocket endpoints. It has no server dependencies so phone apps and
// test tools can import it on its own.
package protocol

import "encoding/json"

// Message types sent by remote devices on /device.
const (
	TypeRegisterDevice  = "registerDevice"
	TypeTagScanned      = "tagScanned"
	TypeDeviceHeartbeat = "deviceHeartbeat"
	TypeNFCState        = "nfcState"
)

// Message types sent by the bridge.
const (
	TypeRegisterDeviceResponse = "registerDeviceResponse"
	TypeNFCDiscovered          = "nfcDiscovered"
	TypeError                  = "error"
)

// Message types sent by clients on /ws.
const (
	TypeHasNFC         = "hasNFC"
	TypeHasNFCResponse = "hasNFCResponse"
)

// Message is the envelope for messages pushed by the bridge.
type Message struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Request is the envelope for incoming messages. The payload is decoded
// once the type is known.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the request payload into v.
func (r Request) Decode(v any) error {
	if len(r.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(r.Payload, v)
}

// Response answers a Request.
type Response struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error codes carried in error responses.
const (
	ErrCodeParse          = "PARSE_ERROR"
	ErrCodeInvalidType    = "INVALID_MESSAGE_TYPE"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeInvalidDevice  = "INVALID_DEVICE"
	ErrCodeUnknownType    = "UNKNOWN_TYPE"
)

// ErrorResponse builds an error response for request id.
func ErrorResponse(id, code, message string) Response {
	return Response{
		ID:      id,
		Type:    TypeError,
		Success: false,
		Error:   message,
		Payload: map[string]string{"code": code},
	}
}

// AvailabilityPayload answers hasNFC requests and GET /api/v1/nfc/available.
type AvailabilityPayload struct {
	Available bool `json:"available"`
}
