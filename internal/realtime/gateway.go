package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/metrics"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
)

const namespace = "/"

var (
	ErrNoCredential      = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid token")
)

// State is where a connection is in its lifecycle
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Session is the per-connection authentication result. It is bound to one
// user for the life of the connection and never shared.
type Session struct {
	ConnID      string
	UserID      string
	ConnectedAt time.Time

	mu    sync.Mutex
	state State
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) advance(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

// TokenVerifier resolves a bearer credential to a user id
type TokenVerifier func(token string) (string, error)

// TypingHandler receives typing indicators from authenticated connections
type TypingHandler interface {
	Typing(ctx context.Context, userID, conversationID string, typing bool) error
}

// Gateway owns the socket.io server. Each authenticated connection joins a
// room named after its user id; that room is the only way to address it.
type Gateway struct {
	server *socketio.Server
	verify TokenVerifier
	typing TypingHandler

	mu       sync.RWMutex
	sessions map[string]*Session // connID -> session
	online   map[string]int      // userID -> open connections
}

func NewGateway(verify TokenVerifier, allowOrigin func(r *http.Request) bool) *Gateway {
	if allowOrigin == nil {
		allowOrigin = func(r *http.Request) bool { return true }
	}
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: allowOrigin},
			&polling.Transport{CheckOrigin: allowOrigin},
		},
	})

	g := &Gateway{
		server:   server,
		verify:   verify,
		sessions: make(map[string]*Session),
		online:   make(map[string]int),
	}
	g.register()
	return g
}

// Attach wires the handler for inbound typing events. Call before Serve.
func (g *Gateway) Attach(typing TypingHandler) {
	g.typing = typing
}

func (g *Gateway) register() {
	g.server.OnConnect(namespace, func(s socketio.Conn) error {
		u := s.URL()
		sess, err := g.open(s.ID(), u.Query(), s.RemoteHeader())
		if err != nil {
			metrics.RealtimeHandshakeRejected.Inc()
			logger.Warn().Err(err).Str("socket_id", s.ID()).Msg("socket connection rejected")
			return err
		}

		s.SetContext(sess)
		s.Join(sess.UserID)
		sess.advance(StateJoined)
		sess.advance(StateActive)

		logger.Info().Str("socket_id", s.ID()).Str("user_id", sess.UserID).Msg("socket authenticated")
		return nil
	})

	g.server.OnEvent(namespace, "typing", func(s socketio.Conn, data map[string]interface{}) {
		g.relayTyping(s, data, true)
	})

	g.server.OnEvent(namespace, "stopTyping", func(s socketio.Conn, data map[string]interface{}) {
		g.relayTyping(s, data, false)
	})

	g.server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		if sess := g.close(s.ID()); sess != nil {
			logger.Info().Str("socket_id", s.ID()).Str("user_id", sess.UserID).Str("reason", reason).Msg("socket closed")
		}
	})

	g.server.OnError(namespace, func(s socketio.Conn, e error) {
		logger.Warn().Err(e).Msg("socket error")
	})
}

// open runs the handshake: no credential or a bad one ends the attempt
func (g *Gateway) open(connID string, query url.Values, header http.Header) (*Session, error) {
	sess := &Session{ConnID: connID, ConnectedAt: time.Now(), state: StateConnecting}

	token := bearerToken(query, header)
	if token == "" {
		return nil, ErrNoCredential
	}
	userID, err := g.verify(token)
	if err != nil || userID == "" {
		return nil, ErrInvalidCredential
	}
	sess.UserID = userID
	sess.advance(StateAuthenticated)

	g.mu.Lock()
	g.sessions[connID] = sess
	g.online[userID]++
	g.mu.Unlock()
	metrics.RealtimeConnections.Inc()
	return sess, nil
}

func (g *Gateway) close(connID string) *Session {
	g.mu.Lock()
	sess, ok := g.sessions[connID]
	if ok {
		delete(g.sessions, connID)
		if g.online[sess.UserID]--; g.online[sess.UserID] <= 0 {
			delete(g.online, sess.UserID)
		}
	}
	g.mu.Unlock()

	if !ok {
		return nil
	}
	sess.advance(StateDisconnected)
	metrics.RealtimeConnections.Dec()
	return sess
}

func (g *Gateway) relayTyping(s socketio.Conn, data map[string]interface{}, typing bool) {
	sess, ok := s.Context().(*Session)
	if !ok || sess.State() != StateActive || g.typing == nil {
		return
	}
	conversationID, _ := data["conversationId"].(string)
	if conversationID == "" {
		return
	}

	// the actor is always the session's user, never a payload field
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.typing.Typing(ctx, sess.UserID, conversationID, typing); err != nil {
		logger.Debug().Err(err).Str("user_id", sess.UserID).Str("conversation_id", conversationID).Msg("typing event ignored")
	}
}

// IsOnline reports whether the user has at least one live connection here
func (g *Gateway) IsOnline(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.online[userID] > 0
}

// Deliver implements Sink for this instance's connections. Events for users
// who are not connected are dropped.
func (g *Gateway) Deliver(userID, event string, payload interface{}) {
	if !g.IsOnline(userID) {
		metrics.RealtimeEvents.WithLabelValues(event, "dropped").Inc()
		return
	}
	g.server.BroadcastToRoom(namespace, userID, event, payload)
	metrics.RealtimeEvents.WithLabelValues(event, "delivered").Inc()
}

// Serve runs the socket.io event loop until Close
func (g *Gateway) Serve() {
	go func() {
		if err := g.server.Serve(); err != nil {
			logger.Error().Err(err).Msg("socket.io server stopped")
		}
	}()
}

func (g *Gateway) Close() error {
	return g.server.Close()
}

// Handler exposes the socket.io endpoint to gin
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		g.server.ServeHTTP(c.Writer, c.Request)
	}
}

func bearerToken(query url.Values, header http.Header) string {
	if t := query.Get("token"); t != "" {
		return t
	}
	if t := query.Get("auth_token"); t != "" {
		return t
	}
	parts := strings.SplitN(header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
