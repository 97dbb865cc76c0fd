package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"workshop/pkg/claims"
	"workshop/pkg/session"
	"workshop/pkg/worker"
)

const (
	sessionKeyWorkerID = "worker_id"
	sessionKeyRole     = "role"
)

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenIssuer interface {
	Issue(id claims.Identity) (string, error)
}

// SessionControl is implemented by *session.Manager.
type SessionControl interface {
	Rotate(w http.ResponseWriter, r *http.Request) error
	Destroy(w http.ResponseWriter, r *http.Request) error
}

type WorkerHandler struct {
	Service  worker.ServiceInterface
	Tokens   TokenIssuer
	Sessions SessionControl
	Logger   *slog.Logger
}

func NewWorkerHandler(service worker.ServiceInterface, tokens TokenIssuer, sessions SessionControl, logger *slog.Logger) *WorkerHandler {
	return &WorkerHandler{
		Service:  service,
		Tokens:   tokens,
		Sessions: sessions,
		Logger:   logger,
	}
}

func (h *WorkerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	wk, err := h.Service.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, worker.ErrExists):
		WriteResp(w, h.Logger, map[string]any{
			"errors": []FieldError{
				{
					Location: "body",
					Param:    "username",
					Value:    req.Username,
					Msg:      "already exists",
				},
			},
		}, http.StatusUnprocessableEntity)
		return
	case errors.Is(err, worker.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, typeMessage, "username and password are required")
		return
	case err != nil:
		h.Logger.Error("register", "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "internal error")
		return
	}

	h.startSession(w, r, wk, "register")
}

func (h *WorkerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	wk, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		msg := "invalid password"
		switch {
		case errors.Is(err, worker.ErrNotFound):
			msg = "user not found"
		case !errors.Is(err, worker.ErrInvalidCredentials):
			h.Logger.Error("login", "error", err)
			writeError(w, http.StatusInternalServerError, typeError, "internal error")
			return
		}
		h.Logger.Info("login rejected", "username", req.Username, "reason", msg)
		writeError(w, http.StatusUnauthorized, typeMessage, msg)
		return
	}

	h.startSession(w, r, wk, "login")
}

// startSession re-keys the browser session, records the worker in it and
// answers with a fresh access token.
func (h *WorkerHandler) startSession(w http.ResponseWriter, r *http.Request, wk *worker.Worker, action string) {
	if err := h.Sessions.Rotate(w, r); err != nil {
		// an ephemeral session still gets a token, just no server-side state
		h.Logger.Warn("session rotate failed", "action", action, "user_id", wk.ID, "error", err)
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		sess.Set(sessionKeyWorkerID, wk.ID)
		sess.Set(sessionKeyRole, wk.Role.String())
	}

	tokenString, err := h.Tokens.Issue(wk.Identity())
	if err != nil {
		h.Logger.Error("token signing", "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "token signing")
		return
	}

	if ok := WriteResp(w, h.Logger, map[string]any{"token": tokenString}, http.StatusOK); ok {
		h.Logger.Info(action, "user_id", wk.ID, "role", wk.Role.String())
	}
}

func (h *WorkerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Destroy(w, r); err != nil && !errors.Is(err, session.ErrNoSession) {
		h.Logger.Warn("session destroy failed", "error", err)
	}
	WriteResp(w, h.Logger, map[string]any{"message": "logged out"}, http.StatusOK)
}
