// Package agent wires the bridge together: event bus, capability
// providers, the listener registry and the server.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dotside-studios/davi-nfc-bridge/config"
	"github.com/dotside-studios/davi-nfc-bridge/eventbus"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/provider"
	"github.com/dotside-studios/davi-nfc-bridge/provider/hardware"
	"github.com/dotside-studios/davi-nfc-bridge/provider/remote"
	"github.com/dotside-studios/davi-nfc-bridge/server"
	"github.com/dotside-studios/davi-nfc-bridge/tls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start on a running agent.
var ErrAlreadyRunning = errors.New("agent is already running")

// Options tunes how an Agent is built.
type Options struct {
	// Serve starts the HTTP server. It is started regardless when the
	// remote provider is enabled, since devices connect through it.
	Serve bool
	// Open opens hardware readers. Defaults to libnfc.
	Open hardware.Opener
	// Registerer and Gatherer back the metrics. Default to the
	// prometheus defaults.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Issuer overrides certificate issuing when TLS is enabled.
	Issuer tls.Issuer
}

type Agent struct {
	Config   config.Config
	Logger   zerolog.Logger
	Bus      *eventbus.Emitter
	Registry *nfc.Registry
	Hardware *hardware.Provider
	Remote   *remote.Provider
	// Server is set by Start when the agent serves HTTP.
	Server *server.Server
	TLS    *tls.Manager

	opts          Options
	serverMetrics *server.Metrics

	mu      sync.Mutex
	running bool
}

// New builds an agent from cfg. Nothing is opened or bound until Start.
func New(cfg config.Config, logger zerolog.Logger, opts Options) *Agent {
	if opts.Open == nil {
		opts.Open = hardware.OpenLibNFC(logger)
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	a := &Agent{
		Config: cfg,
		Logger: logger.With().Str("component", "agent").Logger(),
		Bus:    eventbus.New(logger),
		opts:   opts,
	}

	var entries []provider.Entry
	if cfg.UsesHardware() {
		a.Hardware = hardware.New(hardware.Config{
			Device:       cfg.Device,
			PollInterval: cfg.PollInterval,
			Open:         opts.Open,
			Emitter:      a.Bus,
			Logger:       logger,
		})
		entries = append(entries, provider.Entry{Name: hardware.Source, Provider: a.Hardware})
	}
	if cfg.UsesRemote() {
		a.Remote = remote.New(remote.Config{
			DeviceTimeout: cfg.DeviceTimeout,
			Emitter:       a.Bus,
			Logger:        logger,
		})
		entries = append(entries, provider.Entry{Name: remote.Source, Provider: a.Remote})
	}

	var p nfc.Provider
	if len(entries) == 1 {
		p = entries[0].Provider
	} else {
		p = provider.NewMulti(logger, entries...)
	}

	registryOpts := []nfc.Option{
		nfc.WithLogger(logger),
		nfc.WithEmptyPolicy(nfc.ParseEmptyPolicy(cfg.EmptyPolicy)),
		nfc.WithMetrics(nfc.NewMetrics(opts.Registerer)),
		nfc.WithErrorHandler(func(err error) {
			a.Logger.Warn().Err(err).Msg("registry error")
		}),
	}
	if cfg.RecoverListeners {
		registryOpts = append(registryOpts, nfc.WithListenerRecovery(nil))
	}
	a.Registry = nfc.New(p, a.Bus, registryOpts...)

	if a.serves() {
		a.serverMetrics = server.NewMetrics(opts.Registerer)
	}
	return a
}

func (a *Agent) serves() bool {
	return a.opts.Serve || a.Remote != nil
}

// Start starts the providers and, when serving, the server.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAlreadyRunning
	}

	var certFile, keyFile string
	if a.serves() && a.Config.TLS {
		a.TLS = tls.NewManager(a.Config.ConfigDir, a.Logger)
		if a.opts.Issuer != nil {
			a.TLS.SetIssuer(a.opts.Issuer)
		}
		var err error
		certFile, keyFile, err = a.TLS.EnsureCertificates()
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
	}

	if a.Hardware != nil {
		if err := a.Hardware.Start(ctx); err != nil {
			return fmt.Errorf("hardware provider: %w", err)
		}
	}
	if a.Remote != nil {
		a.Remote.Start(ctx)
	}

	if a.serves() {
		cfg := server.Config{
			Registry:  a.Registry,
			Port:      a.Config.Port,
			MDNS:      a.Config.MDNS,
			APISecret: a.Config.APISecret,
			CertFile:  certFile,
			KeyFile:   keyFile,
			Logger:    a.Logger,
			Metrics:   a.serverMetrics,
			Gatherer:  a.opts.Gatherer,
		}
		if a.Remote != nil {
			cfg.Remote = a.Remote
		}
		if a.TLS != nil {
			cfg.CA = a.TLS.CAHandler()
		}
		a.Server = server.New(cfg)
		if err := a.Server.Start(); err != nil {
			a.stopProviders()
			return err
		}
	}

	a.running = true
	a.Logger.Info().Str("provider", a.Config.Provider).Bool("serving", a.Server != nil).Msg("agent started")
	return nil
}

// Stop stops the server and the providers.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		a.Logger.Debug().Msg("agent is not running")
		return nil
	}
	a.running = false

	a.Logger.Info().Msg("stopping agent")
	var err error
	if a.Server != nil {
		err = a.Server.Stop(ctx)
	}
	a.stopProviders()
	a.Logger.Info().Msg("agent stopped")
	return err
}

func (a *Agent) stopProviders() {
	if a.Remote != nil {
		a.Remote.Stop()
	}
	if a.Hardware != nil {
		a.Hardware.Stop()
	}
}

// HasNFC asks the registry for availability and waits for the answer.
func (a *Agent) HasNFC(ctx context.Context) (bool, error) {
	result := make(chan bool, 1)
	a.Registry.HasNFC(func(available bool) { result <- available })
	select {
	case available := <-result:
		return available, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
