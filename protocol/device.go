package protocol

import "time"

// DeviceCapabilities describes what a remote device can do.
type DeviceCapabilities struct {
	CanRead    bool `json:"canRead"`
	NFCEnabled bool `json:"nfcEnabled"`
}

// DeviceRegistrationRequest is the first message a remote device sends.
type DeviceRegistrationRequest struct {
	DeviceName   string             `json:"deviceName"` // e.g., "Pixel 8"
	Platform     string             `json:"platform"`   // "ios" or "android"
	AppVersion   string             `json:"appVersion"`
	Capabilities DeviceCapabilities `json:"capabilities"`
}

// DeviceRegistrationResponse carries the ID assigned to a registered device.
type DeviceRegistrationResponse struct {
	DeviceID   string     `json:"deviceID"`
	ServerInfo ServerInfo `json:"serverInfo"`
}

// ServerInfo identifies the bridge to remote devices.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TagScanned is sent by a remote device when a tag enters its field.
// NDEFMessages holds raw NDEF messages, base64 encoded in JSON.
type TagScanned struct {
	DeviceID     string    `json:"deviceID"`
	UID          string    `json:"uid"`
	Technology   string    `json:"technology,omitempty"`
	Type         string    `json:"type,omitempty"`
	NDEFMessages [][]byte  `json:"ndefMessages,omitempty"`
	ScannedAt    time.Time `json:"scannedAt,omitempty"`
}

// DeviceHeartbeat keeps a remote device registered.
type DeviceHeartbeat struct {
	DeviceID  string    `json:"deviceID"`
	Timestamp time.Time `json:"timestamp"`
}

// NFCState reports that a device's NFC radio was switched on or off.
type NFCState struct {
	DeviceID string `json:"deviceID"`
	Enabled  bool   `json:"enabled"`
}
