package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/mozzarellastix/SWE-App/internal/auth"
	"github.com/mozzarellastix/SWE-App/internal/db"
	"github.com/mozzarellastix/SWE-App/internal/relay"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Server holds the server's dependencies.
type Server struct {
	relay    *relay.Relay
	db       *db.Store
	auth     auth.Authenticator
	api      *APIHandler
	upgrader websocket.Upgrader

	// allowedOrigins lists browser origins other than the server's own that
	// may open chat sockets.
	allowedOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins lets pages served from origins such as
// "https://app.example.edu" open chat sockets.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o = strings.TrimSuffix(strings.TrimSpace(o), "/"); o != "" {
				s.allowedOrigins = append(s.allowedOrigins, strings.ToLower(o))
			}
		}
	}
}

// NewServer creates a new server instance.
func NewServer(rl *relay.Relay, database *db.Store, authenticator auth.Authenticator, tokens *auth.TokenIssuer, opts ...Option) *Server {
	s := &Server{
		relay: rl,
		db:    database,
		auth:  authenticator,
		api:   NewAPIHandler(database, tokens),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// checkOrigin admits clients that send no Origin (non-browser clients), pages
// from the server's own host, and the configured origins. Identity may come
// from the peer address alone on the tailnet, so a foreign page must never be
// able to open a socket on a visitor's behalf.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return lo.Contains(s.allowedOrigins, strings.ToLower(origin))
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("GET /ws/chat/{user_id}/{$}", s.HandleChat)

	// Account endpoints
	mux.HandleFunc("POST /api/register", s.api.HandleRegister)
	mux.HandleFunc("POST /api/login", s.api.HandleLogin)

	// Authenticated API endpoints
	mux.Handle("GET /api/me", auth.Middleware(s.auth, http.HandlerFunc(s.api.HandleMe)))
	mux.Handle("GET /api/conversations", auth.Middleware(s.auth, http.HandlerFunc(s.api.HandleConversations)))
	mux.Handle("GET /api/messages/{user_id}", auth.Middleware(s.auth, http.HandlerFunc(s.api.HandleHistory)))
	mux.Handle("POST /api/messages/{user_id}/read", auth.Middleware(s.auth, http.HandlerFunc(s.api.HandleMarkRead)))

	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// HandleChat authenticates the caller, upgrades the connection and joins it to
// the room shared with the user named in the path.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), r)
	if err != nil {
		log.WithError(err).Debug("Auth failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	counterpartID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := s.relay.Open(user, counterpartID)

	go s.writePump(conn, client)
	s.readPump(r, conn, client)
}

// HandleHealth reports whether the database is reachable.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		log.WithError(err).Warn("Health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) readPump(r *http.Request, conn *websocket.Conn, client *relay.Client) {
	defer func() {
		client.Close()
		conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logger := log.WithFields(log.Fields{
		"client":  client.ID(),
		"room":    client.RoomID(),
		"user_id": client.User().ID,
	})

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Warn("WebSocket error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Debug("Ignoring non-text frame")
			continue
		}

		err = s.relay.Receive(r.Context(), client, message)
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrClosed):
			logger.Debug("Client evicted, ending read loop")
			return
		case errors.Is(err, relay.ErrPersist):
			logger.WithError(err).Error("Message not relayed")
		default:
			logger.WithError(err).Info("Dropped inbound frame")
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *relay.Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
