package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"workshop/internal/config"
	"workshop/internal/logger"
	"workshop/internal/mongo"
	"workshop/internal/mysql"
	"workshop/internal/redis"
	"workshop/internal/routing"
	"workshop/pkg/realtime"
	"workshop/pkg/session"
	"workshop/pkg/token"
	"workshop/pkg/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load() // load env var from START or .env
	if err != nil {
		log.Fatal(err)
	}

	logger := logger.Load(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := mysql.LoadDB(ctx, cfg.MySQLDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	store, cleanup, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer cleanup()

	auth, err := token.NewAuthenticator([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return err
	}

	sessions := session.NewManager(store, session.Config{
		CookieName: cfg.SessionCookieName,
		Lifetime:   cfg.SessionLifetime,
		Production: cfg.Production(),
	}, logger)

	registry := realtime.NewRegistry()

	r := mux.NewRouter()
	routing.InitRoutes(r, routing.Deps{
		Sessions:    sessions,
		Auth:        auth,
		Workers:     worker.NewService(worker.NewMySQLRepo(db)),
		Broadcaster: realtime.NewBroadcaster(registry, logger),
		Realtime:    realtime.NewHandler(auth, registry, cfg.WSAllowedOrigins, logger),
		Logger:      logger,
	})
	srv := routing.NewServer(cfg.HTTPAddr, r)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server is running", "addr", cfg.HTTPAddr, "env", cfg.Env, "session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if sweepable, ok := store.(session.ExpiredDeleter); ok {
		sweeper := session.NewSweeper(sweepable, cfg.SessionSweepInterval, logger)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "connections", registry.Count())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by Shutdown
		registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// session writes still in flight must land before the stores close
	sessions.Wait()
	return err
}

func openSessionStore(ctx context.Context, cfg config.Config, db *sql.DB) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.SessionBackend {
	case config.BackendMongo:
		mdb, err := mongo.LoadDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, noop, err
		}
		disconnect := func() { _ = mdb.Client().Disconnect(context.Background()) }

		store := session.NewMongoStore(mdb, cfg.SessionLifetime)
		if err := store.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, noop, err
		}
		return store, disconnect, nil

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			return nil, noop, err
		}
		return session.NewRedisStore(client, cfg.SessionLifetime), func() { _ = client.Close() }, nil
	}

	return session.NewMySQLStore(db, cfg.SessionLifetime), noop, nil
}
