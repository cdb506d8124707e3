package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/florentina1509/dizidunya/pkg/protocol"
	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/florentina1509/dizidunya/pkg/transport"
)

// Broadcaster fans frames out to the members of a topic.
type Broadcaster struct {
	registry state.Registry
	logger   *slog.Logger
}

func NewBroadcaster(logger *slog.Logger, registry state.Registry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With(slog.String("component", "broadcaster")),
	}
}

// Publish enqueues frame on every connection subscribed to topic at call
// time. It never blocks on a peer and never reports delivery failures.
func (b *Broadcaster) Publish(topic string, frame protocol.Frame) {
	msgBytes, err := protocol.Encode(frame)
	if err != nil {
		b.logger.Error("Failed to encode frame", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	members := b.registry.MembersOf(topic)
	if len(members) == 0 {
		b.logger.Debug("Publish to empty topic", slog.String("topic", topic))
		return
	}

	delivered := 0
	for _, sub := range members {
		if err := sub.Send(msgBytes); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, transport.ErrClosed) {
				// the close handler is about to deregister it
				level = slog.LevelDebug
			}
			b.logger.Log(context.Background(), level, "Delivery failed",
				slog.String("topic", topic),
				slog.String("connID", sub.ID().String()),
				slog.Any("error", err),
			)
			continue
		}
		delivered++
	}

	b.logger.Debug("Published frame",
		slog.String("topic", topic),
		slog.String("kind", string(frame.Kind())),
		slog.Int("members", len(members)),
		slog.Int("delivered", delivered),
	)
}
