package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dotside-studios/davi-nfc-bridge/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// client is one connection on the client endpoint. Writes come from the
// read loop and from broadcasts, so they are serialized by mu.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (s *Server) addClient(c *client) {
	s.clientsMux.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.clientsMux.Unlock()
	s.config.Metrics.setClients(n)
}

func (s *Server) removeClient(id string) {
	s.clientsMux.Lock()
	delete(s.clients, id)
	n := len(s.clients)
	s.clientsMux.Unlock()
	s.config.Metrics.setClients(n)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients)
}

// broadcast sends a message to all connected clients. Clients that fail
// the write are disconnected.
func (s *Server) broadcast(message *protocol.Message) {
	s.clientsMux.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMux.RUnlock()

	for _, c := range clients {
		if err := c.send(message); err != nil {
			s.config.Metrics.writeError()
			s.logger.Warn().Err(err).Str("client", c.id).Msg("websocket write failed")
			c.conn.Close()
			s.removeClient(c.id)
		}
	}
}

// handleWebSocket upgrades a client connection and routes its requests
// until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.APISecret != "" && r.URL.Query().Get("secret") != s.config.APISecret {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("websocket connection rejected: invalid API secret")
		http.Error(w, "Unauthorized: Invalid API secret", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	s.addClient(c)
	s.logger.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		conn.Close()
		s.removeClient(c.id)
		s.logger.Info().Str("client", c.id).Msg("client disconnected")
	}()

	for {
		var req protocol.Request
		if err := conn.ReadJSON(&req); err != nil {
			// A malformed message still leaves the connection usable.
			if isJSONError(err) {
				c.send(protocol.ErrorResponse("", protocol.ErrCodeParse, "invalid message format"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("client", c.id).Msg("read failed")
			}
			return
		}

		handler, ok := s.handlers.Get(req.Type)
		if !ok {
			c.send(protocol.ErrorResponse(req.ID, protocol.ErrCodeUnknownType,
				fmt.Sprintf("unknown message type: %s", req.Type)))
			continue
		}
		if err := handler(r.Context(), c, req); err != nil {
			s.logger.Warn().Err(err).Str("client", c.id).Str("type", req.Type).Msg("handler failed")
		}
	}
}

// handleHasNFC answers a hasNFC request with the provider's availability.
func (s *Server) handleHasNFC(ctx context.Context, c *client, req protocol.Request) error {
	available, err := s.hasNFC(ctx)
	if err != nil {
		return err
	}
	return c.send(protocol.Response{
		ID:      req.ID,
		Type:    protocol.TypeHasNFCResponse,
		Success: true,
		Payload: protocol.AvailabilityPayload{Available: available},
	})
}

// hasNFC waits for the provider's availability answer.
func (s *Server) hasNFC(ctx context.Context) (bool, error) {
	result := make(chan bool, 1)
	s.config.Registry.HasNFC(func(available bool) {
		result <- available
	})
	select {
	case available := <-result:
		return available, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func isJSONError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
