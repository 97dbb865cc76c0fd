package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"workshop/pkg/claims"
	"workshop/pkg/token"
)

// Verifier checks the access token presented at the handshake.
type Verifier interface {
	Verify(raw string) (claims.Identity, error)
}

// Handler upgrades authenticated requests to websocket connections. The token
// is checked before the upgrade, so a rejected client gets a plain 401 and
// never reaches the registry.
type Handler struct {
	auth     Verifier
	registry *Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHandler(auth Verifier, registry *Registry, allowedOrigins []string, logger *slog.Logger) *Handler {
	h := &Handler{
		auth:     auth,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.Verify(tokenFromRequest(r))
	if err != nil {
		reason := "invalid"
		if errors.Is(err, token.ErrMissing) {
			reason = "missing"
		}
		h.logger.Warn("realtime handshake rejected", "reason", reason, "remote", r.RemoteAddr, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Warn("websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	c := newConn(uuid.NewString(), ws, h.registry, h.logger)
	if err := c.authenticate(identity); err != nil {
		h.logger.Warn("realtime registration refused", "conn_id", c.ID(), "user_id", identity.UserID, "error", err)
		c.Close()
		return
	}
	h.logger.Info("realtime connection admitted", "conn_id", c.ID(), "user_id", identity.UserID, "role", identity.Role.String())

	go c.writePump()
	go c.readPump()
}
