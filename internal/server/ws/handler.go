// Package ws is the realtime transport: one websocket per client, carrying
// the named-event protocol. Authentication happens before the upgrade;
// everything after it is scoped to the token's identity.
package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/auth"
	"github.com/venturelink/messenger/internal/server/metrics"
	"github.com/venturelink/messenger/internal/server/models"
	"github.com/venturelink/messenger/internal/server/protocol"
	"github.com/venturelink/messenger/internal/server/registry"
	"github.com/venturelink/messenger/internal/server/relay"
)

// Handler upgrades authenticated requests and runs the per-connection read
// loop. One Handler serves every connection.
type Handler struct {
	secretKey  []byte
	reg        *registry.Registry
	relay      *relay.Relay
	metrics    metrics.Collector
	logger     logging.Logger
	eventRate  rate.Limit
	eventBurst int
	upgrader   websocket.Upgrader
}

func NewHandler(secretKey []byte, reg *registry.Registry, r *relay.Relay, collector metrics.Collector, logger logging.Logger, eventRate float64, eventBurst int) *Handler {
	return &Handler{
		secretKey:  secretKey,
		reg:        reg,
		relay:      r,
		metrics:    collector,
		logger:     logger.With("module", "ws"),
		eventRate:  rate.Limit(eventRate),
		eventBurst: eventBurst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients carry the token, not a cookie; origin checks
			// belong to the platform's edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// bearerToken pulls the JWT from the Authorization header, falling back to
// the token query parameter for browser websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	identity, err := auth.IdentityFromToken(token, h.secretKey)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h.logger)
	h.metrics.ConnectionOpened()
	go c.writePump()
	h.readLoop(r, c, identity)
}

// readLoop is the single reader of the connection, so per-sender arrival
// order is preserved end to end. It returns when the peer goes away, and
// tears the session down on the way out.
func (h *Handler) readLoop(r *http.Request, c *client, identity models.Identity) {
	ctx := r.Context()
	limiter := rate.NewLimiter(h.eventRate, h.eventBurst)
	joined := false

	defer func() {
		c.close()
		if _, last, ok := h.reg.Leave(c); ok && last {
			h.relay.Disconnected(identity)
		}
		h.metrics.ConnectionClosed()
		h.logger.Info(ctx, "connection closed", "identity", identity.Key(), "conn", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn(ctx, "connection dropped", "identity", identity.Key(), "error", err)
			}
			return
		}

		if !limiter.Allow() {
			c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "rate limit exceeded"})
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "malformed event"})
			continue
		}
		h.metrics.EventReceived(env.Event)

		switch env.Event {
		case protocol.EventJoin:
			var p protocol.JoinPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "malformed event"})
				continue
			}
			if (models.Identity{Type: p.Type, ID: p.ID}) != identity {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "cannot join as another identity"})
				continue
			}
			h.reg.Join(identity, c)
			joined = true

		case protocol.EventSend:
			if !joined {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "join required"})
				continue
			}
			var p protocol.SendPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "malformed event"})
				continue
			}
			h.relay.Send(ctx, identity, c, p)

		case protocol.EventTyping:
			if !joined {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "join required"})
				continue
			}
			var p protocol.TypingPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "malformed event"})
				continue
			}
			h.relay.Typing(identity, c, p)

		case protocol.EventMarkAsRead:
			if !joined {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "join required"})
				continue
			}
			var p protocol.MarkAsReadPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "malformed event"})
				continue
			}
			h.relay.MarkRead(ctx, identity, c, p)

		default:
			c.Deliver(protocol.EventMessageError, protocol.MessageErrorPayload{Error: "unknown event: " + env.Event})
		}
	}
}
