package hardware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/ndef"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/provider"
	"github.com/rs/zerolog"
)

// Source tags discoveries published by this provider.
const Source = "hardware"

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 250 * time.Millisecond

// ErrAlreadyStarted is returned by Start on a running provider.
var ErrAlreadyStarted = errors.New("hardware provider already started")

// Config configures a Provider.
type Config struct {
	// Device is the libnfc connection string. Empty picks the first reader.
	Device       string
	PollInterval time.Duration
	Open         Opener
	Emitter      provider.Emitter
	Logger       zerolog.Logger
}

// Provider polls a local reader and publishes what it finds.
//
// A tag is published once when it enters the field and again only after it
// has left and come back. Adapter status is published whenever the reader
// appears or disappears.
type Provider struct {
	cfg    Config
	slot   provider.StartupSlot
	logger zerolog.Logger

	mu         sync.RWMutex
	scanner    Scanner
	present    map[string]bool
	lastStatus string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Provider. It does not open the reader until Start.
func New(cfg Config) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Provider{
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "hardware").Logger(),
		present: make(map[string]bool),
	}
}

// Start opens the reader and runs the polling worker until ctx is done or
// Stop is called. A missing reader is not an error; the worker keeps
// retrying and reports NO_ADAPTER_ERROR meanwhile.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.poll()

	p.wg.Add(1)
	go p.worker(ctx)
	return nil
}

// Stop ends the worker and closes the reader.
func (p *Provider) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.closeScanner()
	p.cancel = nil
	p.mu.Unlock()
}

// GetStartUpNfcData implements nfc.Provider. The first call receives the
// discovery captured before anyone subscribed; later calls receive nil.
func (p *Provider) GetStartUpNfcData(callback func(*nfc.Discovery)) {
	callback(p.slot.Take())
}

// HasNFC implements nfc.Provider. It reports whether a reader is open.
func (p *Provider) HasNFC(callback func(bool)) {
	p.mu.RLock()
	open := p.scanner != nil
	p.mu.RUnlock()
	callback(open)
}

func (p *Provider) worker(ctx context.Context) {
	defer p.wg.Done()
	p.logger.Info().Dur("interval", p.cfg.PollInterval).Msg("worker started")
	defer p.logger.Info().Msg("worker stopped")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one connect/scan cycle and publishes the results.
func (p *Provider) poll() {
	scanner, ok := p.ensureScanner()
	if !ok {
		return
	}

	targets, err := scanner.Scan()
	if err != nil {
		p.logger.Warn().Err(err).Str("device", scanner.String()).Msg("scan failed, closing reader")
		p.mu.Lock()
		p.closeScanner()
		p.present = make(map[string]bool)
		p.mu.Unlock()
		p.setStatus(nfc.StatusNoAdapter)
		return
	}

	for _, target := range p.arrivals(targets) {
		p.publish(p.discoveryFor(target))
	}
}

func (p *Provider) ensureScanner() (Scanner, bool) {
	p.mu.RLock()
	scanner := p.scanner
	p.mu.RUnlock()
	if scanner != nil {
		return scanner, true
	}
	if p.cfg.Open == nil {
		p.setStatus(nfc.StatusNoAdapter)
		return nil, false
	}

	scanner, err := p.cfg.Open(p.cfg.Device)
	if err != nil {
		if p.setStatus(nfc.StatusNoAdapter) {
			p.logger.Warn().Err(nfc.NewNoAdapterError("Open", err)).Msg("no reader")
		}
		return nil, false
	}

	p.mu.Lock()
	p.scanner = scanner
	p.mu.Unlock()
	p.logger.Info().Str("device", scanner.String()).Msg("reader opened")
	p.setStatus(nfc.StatusAdapterReady)
	return scanner, true
}

// arrivals updates the in-field set and returns the targets that just came
// into the field.
func (p *Provider) arrivals(targets []Target) []Target {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]bool, len(targets))
	var fresh []Target
	for _, t := range targets {
		if t.UID == "" || next[t.UID] {
			continue
		}
		next[t.UID] = true
		if !p.present[t.UID] {
			fresh = append(fresh, t)
		}
	}
	p.present = next
	return fresh
}

func (p *Provider) discoveryFor(t Target) *nfc.Discovery {
	if len(t.NDEF) > 0 {
		d := ndef.Parse(t.NDEF, p.logger)
		if len(d.Messages) > 0 {
			d.Source = Source
			return d
		}
	}
	return nfc.NewTagDiscovery(t.TagInfo(), Source)
}

// setStatus publishes a status event when the adapter state changes. It
// reports whether anything was published.
func (p *Provider) setStatus(message string) bool {
	p.mu.Lock()
	if p.lastStatus == message {
		p.mu.Unlock()
		return false
	}
	p.lastStatus = message
	p.mu.Unlock()

	if message == nfc.StatusAdapterReady {
		p.publish(provider.AdapterReady(Source))
	} else {
		p.publish(provider.NoAdapter(Source))
	}
	return true
}

func (p *Provider) publish(d *nfc.Discovery) {
	n := provider.Publish(&p.slot, p.cfg.Emitter, d)
	p.logger.Debug().Str("discovery", d.String()).Int("handlers", n).Msg("published")
}

// closeScanner must be called with mu held.
func (p *Provider) closeScanner() {
	if p.scanner == nil {
		return
	}
	if err := p.scanner.Close(); err != nil {
		p.logger.Debug().Err(err).Msg("closing reader")
	}
	p.scanner = nil
}

var _ nfc.Provider = (*Provider)(nil)
