package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/florentina1509/dizidunya/pkg/protocol"
	"github.com/florentina1509/dizidunya/pkg/state"
)

// Publisher is the fan-out the bridge dispatches into.
type Publisher interface {
	Publish(topic string, frame protocol.Frame)
}

type dispatch struct {
	topic   string
	message string
}

// Bridge carries notifications from synchronous request handlers into the
// broadcaster. Callers hand messages over a bounded queue and return at
// once; a single dispatcher goroutine (Run) publishes them.
type Bridge struct {
	queue     chan dispatch
	publisher Publisher
	logger    *slog.Logger

	dropped atomic.Uint64
}

func NewBridge(logger *slog.Logger, publisher Publisher, queueSize int) *Bridge {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Bridge{
		queue:     make(chan dispatch, queueSize),
		publisher: publisher,
		logger:    logger.With(slog.String("component", "event_bridge")),
	}
}

// NotifyAll queues message for every notifications subscriber.
func (b *Bridge) NotifyAll(message string) {
	b.enqueue(dispatch{topic: state.TopicNotifications, message: message})
}

// NotifyUser queues message for the notification streams of one user.
func (b *Bridge) NotifyUser(userID int64, message string) {
	b.enqueue(dispatch{topic: state.UserTopic(strconv.FormatInt(userID, 10)), message: message})
}

// Emit routes a domain event to its audience.
func (b *Bridge) Emit(ev Event) {
	switch e := ev.(type) {
	case *UserNotification:
		b.NotifyUser(e.UserID, e.Text)
	case UserNotification:
		b.NotifyUser(e.UserID, e.Text)
	default:
		b.NotifyAll(ev.Message())
	}
}

func (b *Bridge) enqueue(d dispatch) {
	select {
	case b.queue <- d:
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("Notification queue full, dropping message",
			slog.String("topic", d.topic),
			slog.Uint64("dropped_total", n),
		)
	}
}

// Dropped reports how many messages were discarded on a full queue.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Run publishes queued messages until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info("Event bridge started")
	for {
		select {
		case d := <-b.queue:
			b.publisher.Publish(d.topic, protocol.Notification{Message: d.message})
		case <-ctx.Done():
			b.logger.Info("Event bridge stopped", slog.Int("pending", len(b.queue)))
			return
		}
	}
}
