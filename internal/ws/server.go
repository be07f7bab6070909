package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"imenu-order-services/internal/auth"
	"imenu-order-services/internal/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server fans realtime events out to connected dashboard clients, one
// channel per restaurant. It satisfies events.Publisher so the engines
// can broadcast without knowing about connections.
type Server struct {
	Logger *zap.Logger
	Config config.Config

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func New(logger *zap.Logger, cfg config.Config) *Server {
	return &Server{
		Logger: logger,
		Config: cfg,
		subs:   make(map[string]map[*client]struct{}),
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (s *Server) subscribe(restaurantID string, c *client) (unsubscribe func()) {
	key := strings.TrimSpace(restaurantID)
	if key == "" {
		return func() {}
	}

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*client]struct{})
	}
	s.subs[key][c] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		clients := s.subs[key]
		delete(clients, c)
		if len(clients) == 0 {
			delete(s.subs, key)
		}
		s.mu.Unlock()
	}
}

func (s *Server) broadcast(restaurantID string, message any) {
	key := strings.TrimSpace(restaurantID)
	if key == "" {
		return
	}

	s.mu.RLock()
	clientsMap := s.subs[key]
	clients := make([]*client, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			s.mu.Lock()
			if current := s.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(s.subs, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Publish implements events.Publisher.
func (s *Server) Publish(_ context.Context, restaurantID int64, event string, payload any) {
	s.broadcast(fmt.Sprint(restaurantID), map[string]any{
		"type": event,
		"data": payload,
	})
}

// RestaurantWS upgrades the connection and pins the client to the channel
// of the restaurant its token grants. Admins may pass ?restaurantId= to
// watch any tenant.
func (s *Server) RestaurantWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.ParseBearerToken(r.Header.Get("Authorization"))
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	var channel string
	switch {
	case claims.Role == auth.RoleAdmin:
		channel = strings.TrimSpace(r.URL.Query().Get("restaurantId"))
	case claims.RestaurantID != nil:
		channel = fmt.Sprint(*claims.RestaurantID)
	}
	if channel == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "no restaurant channel"})
		return
	}

	ctx := r.Context()
	c := &client{conn: conn}
	unsubscribe := s.subscribe(channel, c)
	defer unsubscribe()

	_ = c.writeJSON(map[string]any{"type": "connected", "channel": channel})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := c.writeJSON(map[string]any{"type": "ping", "at": time.Now()}); err != nil {
				return
			}
		}
	}
}
