package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/florentina1509/dizidunya/internal/server/middleware"
	"github.com/florentina1509/dizidunya/pkg/transport"
)

// session is the per-connection protocol state machine driven by a socket.
type session interface {
	HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte)
	Close()
}

func (a *App) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	a.serveSocket(w, r, reqMeta, func(conn *transport.Connection) (session, error) {
		return a.notifications.Join(conn, reqMeta.UserID)
	})
}

func (a *App) chatHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	communityID, err := strconv.ParseInt(chi.URLParam(r, "communityID"), 10, 64)
	if err != nil || communityID <= 0 {
		http.Error(w, "community id must be a positive integer", http.StatusBadRequest)
		return
	}

	if a.config.Chat.RequireCommunity {
		exists, err := a.store.CommunityExists(r.Context(), communityID)
		if err != nil {
			a.logger.Error("Community lookup failed", slog.Int64("communityID", communityID), slog.Any("error", err))
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		if !exists {
			http.Error(w, "Community not found", http.StatusNotFound)
			return
		}
	}

	a.serveSocket(w, r, reqMeta, func(conn *transport.Connection) (session, error) {
		return a.chat.Join(conn, communityID)
	})
}

// serveSocket upgrades the request, registers the connection, attaches the
// session built by join and blocks until the connection terminates.
func (a *App) serveSocket(w http.ResponseWriter, r *http.Request, reqMeta *middleware.RequestMetadata, join func(*transport.Connection) (session, error)) {
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
		slog.String("path", r.URL.Path),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: a.config.Server.InsecureSkipVerify,
		OriginPatterns:     a.config.Server.AllowedOrigins,
	})
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	var (
		sessMu sync.Mutex
		sess   session
		closed bool
	)
	onClose := func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		sessMu.Lock()
		s := sess
		closed = true
		sessMu.Unlock()
		if s != nil {
			s.Close()
		}
		a.limiter.Forget(id.String())
		if dErr := a.registry.DeregisterConnection(id); dErr != nil {
			connLogger.Error("Failed to deregister connection from state", slog.Any("error", dErr))
		}
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			ReadTimeout:    a.config.Transport.ReadTimeout,
			WriteTimeout:   a.config.Transport.WriteTimeout,
			SendBuffer:     a.config.Transport.SendBuffer,
			MaxMessageSize: a.config.Transport.MaxMessageSize,
		},
		nil,
		onClose,
		a.logger,
	)
	// register new connection
	if _, err := a.registry.RegisterConnection(conn, reqMeta.Owner(), reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}

	joined, err := join(conn)
	if err != nil {
		connLogger.Error("Failed to join topic", slog.Any("error", err))
		conn.Close(err)
		return
	}
	sessMu.Lock()
	alreadyClosed := closed
	sess = joined
	sessMu.Unlock()
	if alreadyClosed {
		// closed (e.g. cycled) while joining; undo the join
		joined.Close()
		a.registry.DeregisterConnection(conn.ID())
		return
	}
	conn.SetOnMessageHandler(func(ctx context.Context, connID uuid.UUID, msg []byte) {
		if !a.limiter.Allow(connID.String()) {
			connLogger.Warn("Inbound message rate exceeded, dropping frame", slog.String("connID", connID.String()))
			return
		}
		joined.HandleMessage(ctx, connID, msg)
	})

	connLogger.Info("Connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}
