package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gametablehq/gametable/internal/config"
)

// Server is the websocket acceptor. It authenticates the handshake through
// the gatekeeper, then runs one read pump and one write pump goroutine per
// connection until either side closes.
type Server struct {
	cfg    config.ServerConfig
	gate   *Gatekeeper
	router *Router
	logger *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates the websocket acceptor listening on cfg.Addr().
//
// Precondition: gate, router, and logger must be non-nil.
func NewServer(cfg config.ServerConfig, gate *Gatekeeper, router *Router, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		gate:   gate,
		router: router,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP listener until Stop. Blocks.
func (s *Server) Start() error {
	s.logger.Info("websocket server listening", zap.String("addr", s.cfg.Addr()))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("websocket server shutdown", zap.Error(err))
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// bearerToken extracts the handshake token from the Authorization header
// or, for browser clients that cannot set headers on a websocket dial, the
// token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	return r.URL.Query().Get("token")
}

// handleWS authenticates and upgrades one connection. Authentication is
// all-or-nothing and happens before the upgrade so an unauthenticated
// caller never holds a socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	client, err := s.gate.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("user_id", client.UserID()),
			zap.Error(err),
		)
		s.gate.Disconnect(client)
		return
	}

	s.logger.Info("websocket connected",
		zap.String("connection_id", client.ID()),
		zap.String("user_id", client.UserID()),
		zap.String("remote", r.RemoteAddr),
	)

	go s.writePump(conn, client)
	s.readPump(conn, client)
}

// readPump decodes inbound envelopes and dispatches them until the socket
// closes, then runs disconnect cleanup.
func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		s.gate.Disconnect(client)
		_ = conn.Close()
	}()

	pongWait := s.cfg.PongTimeout
	if pongWait <= 0 {
		pongWait = time.Minute
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error",
					zap.String("user_id", client.UserID()),
					zap.Error(err),
				)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.router.sendError(client, EvtError, "bad_request", "malformed event envelope")
			continue
		}
		s.router.Dispatch(context.Background(), client, ev)
	}
}

// writePump drains the client's event queue onto the socket and keeps the
// connection alive with pings. It exits when the queue closes or a write
// fails; closing the socket unblocks the read pump, which owns cleanup.
func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	pongWait := s.cfg.PongTimeout
	if pongWait <= 0 {
		pongWait = time.Minute
	}
	pingPeriod := pongWait * 9 / 10
	writeWait := s.cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write error",
					zap.String("user_id", client.UserID()),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
