package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/florentina1509/dizidunya/pkg/protocol"
	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/google/uuid"
)

type NotificationConfig struct {
	// Welcome is sent to a connection once it has joined. Empty disables it.
	Welcome string
}

type NotificationHandler struct {
	registry  state.Registry
	publisher Publisher
	config    NotificationConfig
	logger    *slog.Logger
}

func NewNotificationHandler(logger *slog.Logger, registry state.Registry, publisher Publisher, cfg NotificationConfig) *NotificationHandler {
	return &NotificationHandler{
		registry:  registry,
		publisher: publisher,
		config:    cfg,
		logger:    logger.With(slog.String("component", "notification_handler")),
	}
}

type NotificationSession struct {
	handler *NotificationHandler
	conn    state.Subscriber
	topics  []string
	state   sessionState
	logger  *slog.Logger
}

// Join subscribes conn to the notifications stream and, when userID is
// known, to the user's private stream.
func (h *NotificationHandler) Join(conn state.Subscriber, userID string) (*NotificationSession, error) {
	s := &NotificationSession{
		handler: h,
		conn:    conn,
		topics:  []string{state.TopicNotifications},
		logger:  h.logger.With(slog.String("connID", conn.ID().String())),
	}
	if userID != "" {
		s.topics = append(s.topics, state.UserTopic(userID))
	}

	for i, topic := range s.topics {
		if err := h.registry.Register(conn, topic); err != nil {
			for _, joined := range s.topics[:i] {
				h.registry.Unregister(conn, joined)
			}
			return nil, fmt.Errorf("join '%s': %w", topic, err)
		}
	}
	s.state.transition(StateConnecting, StateJoined)
	s.logger.Info("Joined notifications", slog.Any("topics", s.topics))

	if h.config.Welcome != "" {
		welcome, err := protocol.Encode(protocol.Notification{Message: h.config.Welcome})
		if err == nil {
			err = conn.Send(welcome)
		}
		if err != nil {
			s.logger.Warn("Failed to send welcome frame", slog.Any("error", err))
		}
	}
	return s, nil
}

func (s *NotificationSession) State() SessionState { return s.state.load() }
func (s *NotificationSession) Topics() []string    { return s.topics }

// HandleMessage relays a client message to every notifications subscriber.
func (s *NotificationSession) HandleMessage(_ context.Context, _ uuid.UUID, msg []byte) {
	if s.state.load() != StateJoined {
		return
	}
	in, err := protocol.ParseNotificationInbound(msg)
	if err != nil {
		s.logger.Warn("Ignoring malformed notification frame", slog.Any("error", err))
		return
	}
	if !in.HasMessage {
		s.logger.Debug("Notification frame without message")
		return
	}
	s.handler.publisher.Publish(state.TopicNotifications, protocol.Notification{Message: in.Message})
}

// Close leaves every topic the session joined. Safe to call more than once.
func (s *NotificationSession) Close() {
	if !s.state.transition(StateJoined, StateClosed) {
		s.state.transition(StateConnecting, StateClosed)
		return
	}
	for _, topic := range s.topics {
		s.handler.registry.Unregister(s.conn, topic)
	}
	s.logger.Info("Left notifications")
}
