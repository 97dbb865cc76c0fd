package handlers

import (
	"log/slog"
	"net/http"

	"workshop/pkg/session"
)

type SessionHandler struct {
	Logger *slog.Logger
}

func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{Logger: logger}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		writeError(w, http.StatusInternalServerError, typeError, "no session")
		return
	}
	writeJSON(w, h.Logger, sess.Values())
}

// Patch merges the body into the session values; a null value removes the key.
func (h *SessionHandler) Patch(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		writeError(w, http.StatusInternalServerError, typeError, "no session")
		return
	}

	var patch map[string]any
	if ok := DecodeJSONBody(w, r, &patch); !ok {
		return
	}

	for k, v := range patch {
		if v == nil {
			sess.Delete(k)
			continue
		}
		sess.Set(k, v)
	}
	writeJSON(w, h.Logger, sess.Values())
}
