package tray

import (
	"context"
	"fmt"
	"time"

	"fyne.io/systray"
	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/tls"
	"github.com/rs/zerolog"
)

// DefaultRefreshInterval is how often availability is re-probed.
const DefaultRefreshInterval = 2 * time.Second

// Registry is the part of nfc.Registry the tray consumes.
type Registry interface {
	AddListener(l nfc.Listener)
	HasNFC(callback func(available bool))
}

// Config configures an App.
type Config struct {
	Registry Registry
	// Port and TLS are used to show the client URL.
	Port            int
	TLS             bool
	RefreshInterval time.Duration
	Logger          zerolog.Logger
	// OnQuit runs when the user picks Quit, before the tray exits.
	OnQuit func()
}

// App manages the system tray interface for the bridge
type App struct {
	config Config
	state  State
	logger zerolog.Logger
	cancel context.CancelFunc

	// Menu items
	mStatus  *systray.MenuItem
	mLast    *systray.MenuItem
	mCount   *systray.MenuItem
	mURL     *systray.MenuItem
	mCopyURL *systray.MenuItem
	mQuit    *systray.MenuItem
}

// New creates a tray application.
func New(config Config) *App {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	return &App{
		config: config,
		logger: config.Logger.With().Str("component", "tray").Logger(),
	}
}

// Run starts the systray application. It blocks until Quit.
func (a *App) Run() {
	systray.Run(a.onReady, a.onExit)
}

// Quit closes the tray from outside the menu.
func (a *App) Quit() {
	systray.Quit()
}

func (a *App) onReady() {
	a.setupUI()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.config.Registry.AddListener(func(d *nfc.Discovery) {
		a.state.Observe(d)
		a.refresh()
	})
	go a.probeLoop(ctx)
	go a.handleMenuEvents(ctx)
}

func (a *App) onExit() {
	if a.cancel != nil {
		a.cancel()
	}
}

// setupUI initializes all menu items
func (a *App) setupUI() {
	systray.SetIcon(iconData)
	systray.SetTooltip(buildinfo.DisplayName)

	a.mStatus = systray.AddMenuItem(StatusStarting.String(), "NFC availability")
	a.mStatus.Disable()

	a.mLast = systray.AddMenuItem("Last: None", "Last discovery")
	a.mLast.Disable()
	a.mCount = systray.AddMenuItem("Discoveries: 0", "Discoveries since start")
	a.mCount.Disable()

	systray.AddSeparator()

	a.mURL = systray.AddMenuItem("Clients: "+a.clientURL(), "Client WebSocket URL")
	a.mURL.Disable()
	a.mCopyURL = systray.AddMenuItem("  Copy Client URL", "Copy client URL to clipboard")

	systray.AddSeparator()
	mVersion := systray.AddMenuItem(buildinfo.FullVersion(), "Version")
	mVersion.Disable()
	a.mQuit = systray.AddMenuItem("Quit", "Quit the application")
}

// probeLoop asks the provider for availability on every tick.
func (a *App) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.RefreshInterval)
	defer ticker.Stop()

	a.probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.probe()
		}
	}
}

func (a *App) probe() {
	a.config.Registry.HasNFC(func(available bool) {
		if a.state.SetAvailable(available) {
			a.logger.Debug().Bool("available", available).Msg("availability changed")
			a.refresh()
		}
	})
}

// refresh pushes the state into the menu.
func (a *App) refresh() {
	status := a.state.Status()
	a.mStatus.SetTitle(status.String())
	systray.SetIcon(iconFor(status))
	a.mLast.SetTitle(a.state.LastTitle())
	a.mCount.SetTitle(fmt.Sprintf("Discoveries: %d", a.state.Count()))
}

// handleMenuEvents processes all menu click events
func (a *App) handleMenuEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.mCopyURL.ClickedCh:
			if err := copyToClipboard(a.clientURL()); err != nil {
				a.logger.Warn().Err(err).Msg("failed to copy to clipboard")
			} else {
				a.logger.Info().Msg("copied client URL to clipboard")
			}
		case <-a.mQuit.ClickedCh:
			if a.config.OnQuit != nil {
				a.config.OnQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (a *App) clientURL() string {
	return ClientURL(a.config.Port, a.config.TLS)
}

// ClientURL returns the client WebSocket URL on the first LAN address,
// or localhost when there is none.
func ClientURL(port int, secure bool) string {
	host := "localhost"
	if ips, err := tls.GetLANIPs(); err == nil && len(ips) > 0 {
		host = ips[0]
	}
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/ws", scheme, host, port)
}
