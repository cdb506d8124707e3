package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/florentina1509/dizidunya/internal/engine"
	"github.com/florentina1509/dizidunya/internal/router"
	"github.com/florentina1509/dizidunya/internal/server/middleware"
	"github.com/florentina1509/dizidunya/pkg/config"
	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/florentina1509/dizidunya/pkg/state/statemanager"
	"github.com/florentina1509/dizidunya/pkg/store"
)

type App struct {
	logger        *slog.Logger
	registry      state.Registry
	broadcaster   *engine.Broadcaster
	bridge        *engine.Bridge
	events        *engine.Registry
	limiter       *engine.RateLimiter
	chat          *router.ChatHandler
	notifications *router.NotificationHandler
	store         store.MessageStore
	wg            sync.WaitGroup
	http          *http.Server
	config        *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, messages store.MessageStore) (*App, error) {
	loc, err := cfg.Chat.Location()
	if err != nil {
		return nil, err
	}

	rate, err := engine.ParseRateLimit(cfg.Transport.MessageRate)
	if err != nil {
		return nil, fmt.Errorf("transport.messageRate: %w", err)
	}

	registry := statemanager.NewInMemoryManager(logger)
	broadcaster := engine.NewBroadcaster(logger, registry)
	events := engine.NewRegistry(logger)
	events.RegisterCore()

	app := &App{
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,
		bridge:      engine.NewBridge(logger, broadcaster, cfg.Notifications.QueueSize),
		events:      events,
		limiter:     engine.NewRateLimiter(logger, rate),
		chat: router.NewChatHandler(logger, registry, broadcaster, messages, router.ChatConfig{
			DefaultUsername: cfg.Chat.DefaultUsername,
			PersistTimeout:  cfg.Transport.PersistTimeout,
			Location:        loc,
		}),
		notifications: router.NewNotificationHandler(logger, registry, broadcaster, router.NotificationConfig{
			Welcome: cfg.Notifications.Welcome,
		}),
		store:  messages,
		config: cfg,
		ctx:    rootCtx,
	}

	app.http = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app, nil
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(a.logger),
		chimw.Recoverer,
		middleware.NewAuthMiddleware(a.logger, a.config.Server.Auth.JWTSecret, config.CompilePermissions),
	)

	r.Get("/health", a.healthHandler)
	r.Get("/stats", a.statsHandler)

	connCounter := middleware.OwnerConnectionCounter(a.registry.GetOwnerConnectionCount)
	// Create a cycler function that closes over the registry and logger.
	connCycler := func(owner string) {
		oldest, found := a.registry.FindOldestOwnerConnection(owner)
		if found {
			a.logger.Info("Cycling connection: closing oldest", slog.String("owner", owner), slog.String("connID", oldest.ID.String()))
			// the close handshake waits on the old peer; don't hold up the new one
			go oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewConnectionLimiter(a.logger, connCounter, connCycler, a.config.Server.ConnectionLimit))
		r.Get("/ws/notifications/", a.notificationsHandler)
		r.Get("/ws/chat/{communityID:[0-9]+}/", a.chatHandler)
	})

	r.With(middleware.RequirePermission(a.logger, state.PermPublish)).
		Post("/internal/events", a.eventsHandler)

	return r
}

// Handler exposes the routed handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Bridge is the in-process entry point for domain notifications.
func (a *App) Bridge() *engine.Bridge {
	return a.bridge
}

func (a *App) Run() error {
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	bridgeDone := make(chan struct{})
	go func() {
		a.bridge.Run(bridgeCtx)
		close(bridgeDone)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-a.ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownErr := a.Shutdown()
	stopBridge()
	<-bridgeDone
	return errors.Join(runErr, shutdownErr)
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.GetAllConnections() {
		go conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.logger.Info("Server shut down gracefully.")
		return nil
	case <-shutdownCtx.Done():
		return errors.New("timed out waiting for connections to close")
	}
}
