// Package httpapi is the request/response query surface next to the
// realtime socket: conversation history, peer lists and presence snapshots,
// plus the operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/auth"
	"github.com/venturelink/messenger/internal/server/models"
	"github.com/venturelink/messenger/internal/server/registry"
	"github.com/venturelink/messenger/internal/server/services"
)

type contextKey int

const identityKey contextKey = iota

// IdentityFromContext returns the authenticated identity stored by the auth
// middleware.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

// RouterDeps bundles what the router needs.
type RouterDeps struct {
	SecretKey []byte
	Service   *services.MessageService
	Registry  *registry.Registry
	Logger    logging.Logger

	// WSHandler is mounted at /ws, outside the JSON middleware chain; it
	// runs its own authentication before the upgrade.
	WSHandler http.Handler

	// Gatherer backs the /metrics endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the full HTTP surface: /ws, the authenticated /api
// routes, /healthz and /metrics.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	h := &apiHandler{
		service:  deps.Service,
		registry: deps.Registry,
		logger:   deps.Logger.With("module", "httpapi"),
	}

	if deps.WSHandler != nil {
		r.Handle("/ws", deps.WSHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(deps.SecretKey))
		r.Get("/messages", h.messages)
		r.Get("/conversations", h.conversations)
		r.Get("/presence", h.presence)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// bearerAuth authenticates the request from its Authorization header and
// stores the identity in the request context.
func bearerAuth(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			identity, err := auth.IdentityFromToken(strings.TrimPrefix(header, "Bearer "), secretKey)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type apiHandler struct {
	service  *services.MessageService
	registry *registry.Registry
	logger   logging.Logger
}

// messages returns the caller's decrypted conversation with one peer,
// oldest first.
func (h *apiHandler) messages(w http.ResponseWriter, r *http.Request) {
	self, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	peer, err := peerFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.service.History(r.Context(), self, peer)
	if err != nil {
		h.logger.Error(r.Context(), "history query failed", "self", self.Key(), "peer", peer.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

// conversations lists the caller's peers with last-activity timestamps and
// unread counts.
func (h *apiHandler) conversations(w http.ResponseWriter, r *http.Request) {
	self, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	peers, err := h.service.Peers(r.Context(), self)
	if err != nil {
		h.logger.Error(r.Context(), "peer listing failed", "self", self.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": peers})
}

// presence returns a point-in-time snapshot of who is online.
func (h *apiHandler) presence(w http.ResponseWriter, r *http.Request) {
	online := h.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"online": online})
}

func peerFromQuery(r *http.Request) (models.Identity, error) {
	peerType := models.ActorType(r.URL.Query().Get("peerType"))
	peerID, err := strconv.ParseInt(r.URL.Query().Get("peerId"), 10, 64)
	if err != nil {
		return models.Identity{}, errors.New("peerId must be a positive integer")
	}

	peer := models.Identity{Type: peerType, ID: peerID}
	if !peer.Valid() {
		return models.Identity{}, errors.New("unknown peerType or peerId")
	}
	return peer, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
