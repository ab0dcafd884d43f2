// Package server exposes a discovery registry over HTTP and WebSocket.
//
// Clients connect to /ws and receive every discovery as an nfcDiscovered
// message. Phones and other scanning devices connect to /device, which is
// served by the remote provider when one is configured.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/dotside-studios/davi-nfc-bridge/nfc"
	"github.com/dotside-studios/davi-nfc-bridge/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned by Start on a running server.
var ErrAlreadyStarted = errors.New("server already started")

// Registry is the part of nfc.Registry the server consumes.
type Registry interface {
	AddListener(l nfc.Listener)
	HasNFC(callback func(available bool))
}

// Config holds the server configuration
type Config struct {
	Registry Registry
	// Remote serves the device endpoint. Optional.
	Remote http.Handler
	// Port 0 binds an ephemeral port.
	Port int
	// MDNS advertises the bridge on the local network.
	MDNS bool
	// APISecret, when set, must be passed as ?secret= on the client endpoint.
	APISecret string
	// CA serves the CA certificate for devices. Optional.
	CA http.Handler
	// CertFile and KeyFile switch the listener to TLS.
	CertFile string
	KeyFile  string
	Logger   zerolog.Logger
	Metrics  *Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server manages the HTTP and WebSocket server
type Server struct {
	config     Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
	handlers   *HandlerRegistry

	clients    map[string]*client
	clientsMux sync.RWMutex

	lastMu sync.RWMutex
	last   *nfc.Discovery

	startMu    sync.Mutex
	started    bool
	subscribed bool
	done       chan struct{}

	// mDNS service for auto-discovery
	mdnsServer *zeroconf.Server
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:  config,
		logger:  config.Logger.With().Str("component", "server").Logger(),
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		handlers: NewHandlerRegistry(),
	}
	s.handlers.Handle(protocol.TypeHasNFC, s.handleHasNFC)
	s.router = s.routes()
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Handlers returns the client message handler registry.
func (s *Server) Handlers() *HandlerRegistry {
	return s.handlers
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.config.Metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: CORSAllowedOrigins,
		AllowedMethods: CORSAllowedMethods,
		AllowedHeaders: CORSAllowedHeaders,
		MaxAge:         CORSMaxAge,
	}))

	r.Get(PathClients, s.handleWebSocket)
	if s.config.Remote != nil {
		r.Handle(PathDevices, s.config.Remote)
	}

	if s.config.CA != nil {
		r.Method(http.MethodGet, PathCA, s.config.CA)
	}

	r.Get(PathAvailable, s.handleAvailable)
	r.Get(PathHealth, s.handleHealth)
	r.Get(PathMetrics, promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(buildinfo.DisplayName + " Server Running"))
	})
	return r
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	available, err := s.hasNFC(ctx)
	if err != nil {
		writeJSONError(w, http.StatusGatewayTimeout, "availability check timed out")
		return
	}
	writeJSON(w, http.StatusOK, protocol.AvailabilityPayload{Available: available})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"clients": s.ClientCount(),
	})
}

// Subscribe registers the server's broadcast listener with the registry.
// It is called by Start and only takes effect once.
func (s *Server) Subscribe() {
	s.startMu.Lock()
	if s.subscribed {
		s.startMu.Unlock()
		return
	}
	s.subscribed = true
	s.startMu.Unlock()

	s.config.Registry.AddListener(s.onDiscovery)
}

func (s *Server) onDiscovery(d *nfc.Discovery) {
	if !d.IsStatus() {
		s.lastMu.Lock()
		s.last = d
		s.lastMu.Unlock()
	}
	s.config.Metrics.broadcast()
	s.broadcast(&protocol.Message{
		Type:    protocol.TypeNFCDiscovered,
		Payload: d,
	})
}

// LastDiscovery returns the most recent tag or NDEF discovery broadcast.
func (s *Server) LastDiscovery() *nfc.Discovery {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// Start binds the listener, subscribes to the registry and serves in the
// background. It returns once the port is bound.
func (s *Server) Start() error {
	s.startMu.Lock()
	if s.started {
		s.startMu.Unlock()
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		s.startMu.Unlock()
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})
	s.started = true
	s.startMu.Unlock()

	s.Subscribe()

	go s.serve(s.httpServer, ln, s.done)

	if s.config.MDNS {
		if err := s.startMDNS(ln.Addr().(*net.TCPAddr).Port); err != nil {
			s.logger.Warn().Err(err).Msg("failed to start mDNS service, auto-discovery will not be available")
		}
	}
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)

	s.logger.Info().Str("addr", ln.Addr().String()).Bool("tls", s.tlsEnabled()).Msg("server listening")
	var err error
	if s.tlsEnabled() {
		err = srv.ServeTLS(ln, s.config.CertFile, s.config.KeyFile)
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("http server error")
	}
}

func (s *Server) tlsEnabled() bool {
	return s.config.CertFile != "" && s.config.KeyFile != ""
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down gracefully, disconnecting every client.
// The registry listener stays registered; discoveries arriving after Stop
// find no clients.
func (s *Server) Stop(ctx context.Context) error {
	s.startMu.Lock()
	if !s.started {
		s.startMu.Unlock()
		return nil
	}
	s.started = false
	srv, done := s.httpServer, s.done
	mdns := s.mdnsServer
	s.mdnsServer = nil
	s.startMu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
		s.logger.Info().Msg("mDNS service stopped")
	}

	// Hijacked connections are not closed by Shutdown.
	s.clientsMux.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	s.clientsMux.Unlock()
	s.config.Metrics.setClients(0)

	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// startMDNS registers the bridge as an mDNS service for auto-discovery
func (s *Server) startMDNS(port int) error {
	txtRecords := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=" + PathClients,
		"device_path=" + PathDevices,
	}
	if s.tlsEnabled() {
		txtRecords = append(txtRecords, "tls=1")
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, port, txtRecords, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.startMu.Lock()
	s.mdnsServer = server
	s.startMu.Unlock()
	s.logger.Info().Str("service", MDNSServiceType).Int("port", port).Msg("mDNS service registered")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}
