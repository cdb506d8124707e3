package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/florentina1509/dizidunya/pkg/protocol"
	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/florentina1509/dizidunya/pkg/store"
	"github.com/google/uuid"
)

const TimestampLayout = "15:04"

type ChatConfig struct {
	DefaultUsername string
	PersistTimeout  time.Duration
	Location        *time.Location
}

// ChatHandler creates chat room sessions. It is shared by all chat
// connections.
type ChatHandler struct {
	registry  state.Registry
	publisher Publisher
	store     store.MessageStore
	config    ChatConfig
	now       func() time.Time
	logger    *slog.Logger
}

func NewChatHandler(logger *slog.Logger, registry state.Registry, publisher Publisher, messages store.MessageStore, cfg ChatConfig) *ChatHandler {
	if cfg.DefaultUsername == "" {
		cfg.DefaultUsername = "Unknown User"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ChatHandler{
		registry:  registry,
		publisher: publisher,
		store:     messages,
		config:    cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "chat_handler")),
	}
}

// SetClock replaces the timestamp source.
func (h *ChatHandler) SetClock(now func() time.Time) {
	h.now = now
}

// ChatSession is the state of one connection inside one community room.
type ChatSession struct {
	handler     *ChatHandler
	conn        state.Subscriber
	communityID int64
	topic       string
	state       sessionState
	logger      *slog.Logger
}

// Join registers conn in the room of communityID.
func (h *ChatHandler) Join(conn state.Subscriber, communityID int64) (*ChatSession, error) {
	if communityID <= 0 {
		return nil, fmt.Errorf("invalid community id %d", communityID)
	}
	s := &ChatSession{
		handler:     h,
		conn:        conn,
		communityID: communityID,
		topic:       state.ChatTopic(communityID),
		logger: h.logger.With(
			slog.String("connID", conn.ID().String()),
			slog.Int64("communityID", communityID),
		),
	}
	if err := h.registry.Register(conn, s.topic); err != nil {
		return nil, fmt.Errorf("join room '%s': %w", s.topic, err)
	}
	s.state.transition(StateConnecting, StateJoined)
	s.logger.Info("Joined chat room")
	return s, nil
}

func (s *ChatSession) State() SessionState { return s.state.load() }
func (s *ChatSession) Topic() string       { return s.topic }

// HandleMessage processes one inbound frame. Frames of a session are
// handled sequentially by the connection's read loop.
func (s *ChatSession) HandleMessage(ctx context.Context, _ uuid.UUID, msg []byte) {
	if s.state.load() != StateJoined {
		return
	}
	in, err := protocol.ParseChatInbound(msg)
	if err != nil {
		s.logger.Warn("Ignoring malformed chat frame", slog.Any("error", err))
		return
	}
	if in.Blank() {
		return
	}

	username := in.Username
	if username == "" {
		username = s.handler.config.DefaultUsername
	}

	s.persist(ctx, in)

	s.handler.publisher.Publish(s.topic, protocol.ChatMessage{
		Message:   in.Message,
		Username:  username,
		Timestamp: s.handler.now().In(s.handler.config.Location).Format(TimestampLayout),
	})
}

// persist stores the message. Failures are logged; the broadcast goes out
// regardless.
func (s *ChatSession) persist(ctx context.Context, in protocol.ChatInbound) {
	if !in.HasUserID {
		s.logger.Warn("Chat frame without integer user_id, not persisted")
		return
	}
	if s.handler.store == nil {
		return
	}
	if s.handler.config.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.handler.config.PersistTimeout)
		defer cancel()
	}
	err := s.handler.store.PersistChatMessage(ctx, s.communityID, in.UserID, in.Message)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.logger.Warn("Chat message not persisted: unknown community or user",
			slog.String("userID", strconv.FormatInt(in.UserID, 10)),
			slog.Any("error", err),
		)
	default:
		s.logger.Error("Failed to persist chat message",
			slog.String("userID", strconv.FormatInt(in.UserID, 10)),
			slog.Any("error", err),
		)
	}
}

// Close leaves the room. Safe to call more than once.
func (s *ChatSession) Close() {
	if !s.state.transition(StateJoined, StateClosed) {
		s.state.transition(StateConnecting, StateClosed)
		return
	}
	s.handler.registry.Unregister(s.conn, s.topic)
	s.logger.Info("Left chat room")
}
