package server

import "github.com/dotside-studios/davi-nfc-bridge/buildinfo"

// mDNS service discovery constants
var (
	MDNSServiceType = "_nfc-bridge._tcp"
	MDNSServiceName = buildinfo.DisplayName
	MDNSDomain      = "local."
)

// DefaultPort is the port the bridge listens on when none is configured.
const DefaultPort = 18080

// Route paths
const (
	PathClients   = "/ws"
	PathDevices   = "/device"
	PathAvailable = "/api/v1/nfc/available"
	PathHealth    = "/healthz"
	PathMetrics   = "/metrics"
	PathCA        = "/ca.pem"
)

// CORS configuration
var (
	CORSAllowedOrigins = []string{"*"}
	CORSAllowedMethods = []string{"GET", "OPTIONS"}
	CORSAllowedHeaders = []string{"Content-Type", "Authorization"}
)

// CORSMaxAge is how long browsers may cache a preflight answer, in seconds.
const CORSMaxAge = 300
