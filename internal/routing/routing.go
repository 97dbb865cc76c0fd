package routing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"workshop/pkg/handlers"
	"workshop/pkg/middleware"
	"workshop/pkg/realtime"
	"workshop/pkg/session"
	"workshop/pkg/token"
	"workshop/pkg/worker"
)

type Deps struct {
	Sessions    *session.Manager
	Auth        *token.Authenticator
	Workers     worker.ServiceInterface
	Broadcaster *realtime.Broadcaster
	Realtime    http.Handler
	Logger      *slog.Logger
}

func InitRoutes(r *mux.Router, d Deps) {
	workerHandler := handlers.NewWorkerHandler(d.Workers, d.Auth, d.Sessions, d.Logger)
	sessionHandler := handlers.NewSessionHandler(d.Logger)
	notifyHandler := handlers.NewNotifyHandler(d.Broadcaster, d.Logger)

	r.Use(middleware.Panic(d.Logger))

	/* realtime, token checked during the handshake */
	r.Handle("/ws", d.Realtime).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.Sessions.Middleware)

	/* auth routers */
	api.HandleFunc("/register", workerHandler.Register).Methods("POST").Name("register")
	api.HandleFunc("/login", workerHandler.Login).Methods("POST").Name("login")
	api.HandleFunc("/logout", workerHandler.Logout).Methods("POST").Name("logout")

	/* session routers */
	api.HandleFunc("/session", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/session", sessionHandler.Patch).Methods("PATCH")

	/* notification routers */
	notify := api.NewRoute().Subrouter()
	notify.Use(middleware.CheckToken(d.Auth, d.Logger), middleware.RequireElevated)
	notify.HandleFunc("/vehicles/{vehicleId:[a-zA-Z0-9_-]+}/position", notifyHandler.VehiclePosition).Methods("POST")
	notify.HandleFunc("/tasks/{taskId:[a-zA-Z0-9_-]+}/status", notifyHandler.TaskStatus).Methods("POST")
	notify.HandleFunc("/alerts", notifyHandler.Alert).Methods("POST")

	ServeFallback(r, d.Logger)
}

func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("route not found", slog.String("path", r.URL.Path), slog.String("method", r.Method))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		if _, err := w.Write([]byte(`{"message":"not found"}`)); err != nil {
			logger.Error("failed to write fallback JSON", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	})
}

func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
