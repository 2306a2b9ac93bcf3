package livechat

import (
	"context"
	"net/http"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var connections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "livechat_connections",
	Help: "Open websocket connections.",
})

func init() {
	prometheus.MustRegister(connections)
}

// ServerConfig sizes the websocket transport.
type ServerConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
}

// Server upgrades HTTP requests to websockets and feeds their frames to a
// Dispatcher.
type Server struct {
	d        *Dispatcher
	cfg      ServerConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer returns an http.Handler for the /ws endpoint.
func NewServer(d *Dispatcher, cfg ServerConfig) *Server {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 256
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 << 10
	}
	s := &Server{d: d, cfg: cfg, log: log.With().Str("component", "livechat").Logger()}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows requests without an Origin header, any origin when the
// allow-list is empty or holds "*", and otherwise exact matches only.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// ServeHTTP implements http.Handler. It returns when the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	c := NewConn(ws, s.cfg.SendBuffer)
	connections.Inc()
	defer connections.Dec()

	go s.writePump(c)
	s.readPump(context.WithoutCancel(r.Context()), c)
}

func (s *Server) readPump(ctx context.Context, c *Conn) {
	defer func() {
		s.d.Leave(ctx, c)
		c.Close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(s.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Uint64("conn_id", c.ID()).Msg("unexpected websocket close")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := s.d.Handle(ctx, c, data); err != nil {
			s.log.Debug().Err(err).Uint64("conn_id", c.ID()).Msg("frame rejected")
		}
	}
}

func (s *Server) writePump(c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				s.log.Error().Err(err).Str("event", ev.Type).Msg("failed to encode event")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
