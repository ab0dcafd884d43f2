// Package remote is the capability provider for phones and other devices
// that scan tags themselves and forward them over a WebSocket.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/dotside-studios/davi-nfc-bridge/ndef"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/protocol"
	"github.com/dotside-studios/davi-nfc-bridge/provider"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Source tags discoveries published by this provider.
const Source = "remote"

// Timing defaults.
const (
	DefaultDeviceTimeout   = 30 * time.Second
	DefaultCleanupInterval = 15 * time.Second
)

// Config configures a Provider.
type Config struct {
	// DeviceTimeout is how long a device may stay silent before it is dropped.
	DeviceTimeout   time.Duration
	CleanupInterval time.Duration
	Emitter         provider.Emitter
	Logger          zerolog.Logger
}

type device struct {
	id         string
	name       string
	platform   string
	nfcEnabled bool
	lastSeen   time.Time
	conn       *websocket.Conn
}

// Provider accepts remote device connections and publishes the tags they
// report. It implements http.Handler for the device WebSocket endpoint.
type Provider struct {
	cfg      Config
	slot     provider.StartupSlot
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu        sync.RWMutex
	devices   map[string]*device
	available bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Provider.
func New(cfg Config) *Provider {
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = DefaultDeviceTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Provider{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "remote").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:     time.Now,
		devices: make(map[string]*device),
	}
}

// Start runs the inactive-device cleanup until ctx is done or Stop is called.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pruneInactive()
			}
		}
	}()
}

// Stop ends the cleanup loop and disconnects every device.
func (p *Provider) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		p.wg.Wait()
	}

	p.mu.Lock()
	for id, d := range p.devices {
		d.conn.Close()
		delete(p.devices, id)
	}
	p.mu.Unlock()
	p.refreshAvailability()
}

// GetStartUpNfcData implements nfc.Provider.
func (p *Provider) GetStartUpNfcData(callback func(*nfc.Discovery)) {
	callback(p.slot.Take())
}

// HasNFC implements nfc.Provider. It is true while at least one registered
// device reports its NFC radio as enabled.
func (p *Provider) HasNFC(callback func(bool)) {
	p.mu.RLock()
	available := p.available
	p.mu.RUnlock()
	callback(available)
}

// DeviceCount returns the number of registered devices.
func (p *Provider) DeviceCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.devices)
}

// ServeHTTP upgrades the request and serves one device until it disconnects.
// The first message must be registerDevice.
func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	p.logger.Info().Str("remote", r.RemoteAddr).Msg("device connected")

	var req protocol.Request
	if err := conn.ReadJSON(&req); err != nil {
		p.sendError(conn, "", protocol.ErrCodeParse, "invalid message format")
		return
	}
	if req.Type != protocol.TypeRegisterDevice {
		p.sendError(conn, req.ID, protocol.ErrCodeInvalidType,
			fmt.Sprintf("expected '%s' message", protocol.TypeRegisterDevice))
		return
	}

	d, err := p.register(conn, req)
	if err != nil {
		p.logger.Warn().Err(err).Msg("registration failed")
		return
	}
	defer p.unregister(d.id)

	for {
		var req protocol.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debug().Err(err).Str("device", d.id).Msg("read failed")
			}
			return
		}
		if err := p.route(conn, d.id, req); err != nil {
			p.logger.Warn().Err(err).Str("device", d.id).Str("type", req.Type).Msg("message rejected")
		}
	}
}

func (p *Provider) register(conn *websocket.Conn, req protocol.Request) (*device, error) {
	var reg protocol.DeviceRegistrationRequest
	if err := req.Decode(&reg); err != nil {
		p.sendError(conn, req.ID, protocol.ErrCodeInvalidPayload, "invalid registration request")
		return nil, nfc.NewInvalidPayloadError(protocol.TypeRegisterDevice, "decode", err)
	}
	if reg.DeviceName == "" {
		p.sendError(conn, req.ID, protocol.ErrCodeInvalidPayload, "device name is required")
		return nil, nfc.NewInvalidPayloadError(protocol.TypeRegisterDevice, "device name is required", nil)
	}

	d := &device{
		id:         uuid.New().String(),
		name:       reg.DeviceName,
		platform:   reg.Platform,
		nfcEnabled: reg.Capabilities.NFCEnabled,
		lastSeen:   p.now(),
		conn:       conn,
	}

	resp := protocol.Response{
		ID:      req.ID,
		Type:    protocol.TypeRegisterDeviceResponse,
		Success: true,
		Payload: protocol.DeviceRegistrationResponse{
			DeviceID:   d.id,
			ServerInfo: protocol.ServerInfo{Name: buildinfo.Name, Version: buildinfo.Version},
		},
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("send registration response: %w", err)
	}

	p.mu.Lock()
	p.devices[d.id] = d
	p.mu.Unlock()

	p.logger.Info().Str("device", d.id).Str("name", d.name).Str("platform", d.platform).
		Bool("nfc", d.nfcEnabled).Msg("device registered")
	p.refreshAvailability()
	return d, nil
}

func (p *Provider) unregister(id string) {
	p.mu.Lock()
	_, ok := p.devices[id]
	delete(p.devices, id)
	p.mu.Unlock()

	if ok {
		p.logger.Info().Str("device", id).Msg("device unregistered")
		p.refreshAvailability()
	}
}

func (p *Provider) route(conn *websocket.Conn, deviceID string, req protocol.Request) error {
	switch req.Type {
	case protocol.TypeTagScanned:
		var scan protocol.TagScanned
		if err := req.Decode(&scan); err != nil {
			p.sendError(conn, req.ID, protocol.ErrCodeInvalidPayload, "invalid tag data")
			return nfc.NewInvalidPayloadError(req.Type, "decode", err)
		}
		if err := p.checkDevice(deviceID, scan.DeviceID); err != nil {
			p.sendError(conn, req.ID, protocol.ErrCodeInvalidDevice, err.Error())
			return err
		}
		d, err := p.discoveryFor(scan)
		if err != nil {
			p.sendError(conn, req.ID, protocol.ErrCodeInvalidPayload, err.Error())
			return err
		}
		p.touch(deviceID)
		p.publish(d)
		return nil

	case protocol.TypeDeviceHeartbeat:
		var hb protocol.DeviceHeartbeat
		if err := req.Decode(&hb); err != nil {
			return nfc.NewInvalidPayloadError(req.Type, "decode", err)
		}
		if err := p.checkDevice(deviceID, hb.DeviceID); err != nil {
			return err
		}
		p.touch(deviceID)
		return nil

	case protocol.TypeNFCState:
		var state protocol.NFCState
		if err := req.Decode(&state); err != nil {
			p.sendError(conn, req.ID, protocol.ErrCodeInvalidPayload, "invalid nfc state")
			return nfc.NewInvalidPayloadError(req.Type, "decode", err)
		}
		if err := p.checkDevice(deviceID, state.DeviceID); err != nil {
			p.sendError(conn, req.ID, protocol.ErrCodeInvalidDevice, err.Error())
			return err
		}
		p.mu.Lock()
		if d, ok := p.devices[deviceID]; ok {
			d.nfcEnabled = state.Enabled
			d.lastSeen = p.now()
		}
		p.mu.Unlock()
		p.refreshAvailability()
		return nil
	}

	p.sendError(conn, req.ID, protocol.ErrCodeUnknownType, fmt.Sprintf("unknown message type: %s", req.Type))
	return fmt.Errorf("unknown message type %q", req.Type)
}

// checkDevice rejects messages that name a device other than the one bound
// to the connection. An omitted ID means the connection's device.
func (p *Provider) checkDevice(connDevice, claimed string) error {
	if claimed != "" && claimed != connDevice {
		return fmt.Errorf("device mismatch: connection is %s, message names %s", connDevice, claimed)
	}
	p.mu.RLock()
	_, ok := p.devices[connDevice]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("device not registered: %s", connDevice)
	}
	return nil
}

// discoveryFor turns a scan into an NDEF discovery when any message decodes,
// else into a TAG discovery.
func (p *Provider) discoveryFor(scan protocol.TagScanned) (*nfc.Discovery, error) {
	uid, err := protocol.NormalizeUID(scan.UID)
	if err != nil {
		return nil, nfc.NewInvalidPayloadError(protocol.TypeTagScanned, "invalid uid", err)
	}

	if len(scan.NDEFMessages) > 0 {
		d := ndef.Parse(scan.NDEFMessages, p.logger)
		if len(d.Messages) > 0 {
			d.Source = Source
			if !scan.ScannedAt.IsZero() {
				d.ScannedAt = scan.ScannedAt
			}
			return d, nil
		}
	}

	technology := scan.Technology
	if technology == "" {
		technology = protocol.InferTechnology(scan.Type)
	}
	d := nfc.NewTagDiscovery(nfc.TagInfo{
		ID:       uid,
		Type:     scan.Type,
		TechList: []string{technology},
	}, Source)
	if !scan.ScannedAt.IsZero() {
		d.ScannedAt = scan.ScannedAt
	}
	return d, nil
}

func (p *Provider) touch(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.devices[id]; ok {
		d.lastSeen = p.now()
	}
}

// pruneInactive drops devices that have been silent longer than the timeout.
func (p *Provider) pruneInactive() {
	now := p.now()
	p.mu.Lock()
	var pruned []string
	for id, d := range p.devices {
		if now.Sub(d.lastSeen) > p.cfg.DeviceTimeout {
			d.conn.Close()
			delete(p.devices, id)
			pruned = append(pruned, id)
		}
	}
	p.mu.Unlock()

	for _, id := range pruned {
		p.logger.Info().Str("device", id).Msg("inactive device dropped")
	}
	if len(pruned) > 0 {
		p.refreshAvailability()
	}
}

// refreshAvailability recomputes HasNFC and publishes a status event when
// it changes.
func (p *Provider) refreshAvailability() {
	p.mu.Lock()
	available := false
	for _, d := range p.devices {
		if d.nfcEnabled {
			available = true
			break
		}
	}
	changed := available != p.available
	p.available = available
	p.mu.Unlock()

	if !changed {
		return
	}
	if available {
		p.publish(provider.AdapterReady(Source))
	} else {
		p.publish(provider.NoAdapter(Source))
	}
}

func (p *Provider) publish(d *nfc.Discovery) {
	n := provider.Publish(&p.slot, p.cfg.Emitter, d)
	p.logger.Debug().Str("discovery", d.String()).Int("handlers", n).Msg("published")
}

func (p *Provider) sendError(conn *websocket.Conn, id, code, message string) {
	if err := conn.WriteJSON(protocol.ErrorResponse(id, code, message)); err != nil {
		p.logger.Debug().Err(err).Msg("sending error response failed")
	}
}

var _ nfc.Provider = (*Provider)(nil)
