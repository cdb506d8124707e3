package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var (
	ErrClosed         = errors.New("transport: connection closed")
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	// ReadTimeout bounds how long a peer may go without answering a ping.
	// Pings go out every ReadTimeout/2. Zero disables liveness checks.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

// Connection represents a single, thread-safe WebSocket connection.
// Inbound frames are handled one at a time on the read goroutine; outbound
// frames are queued and written in order by the write goroutine.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	connLogger := logger.With(slog.String("connID", id.String()))

	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	if conn != nil && config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	if wg != nil {
		wg.Add(1)
	}

	return &Connection{
		id:        id,
		conn:      conn,
		logger:    connLogger,
		config:    config,
		onMessage: onMessage,
		send:      make(chan []byte, config.SendBuffer),
		done:      make(chan struct{}),
		ctx:       connCtx,
		cancel:    cancel,
		onClose:   onClose,
		wg:        wg,
	}
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()

	c.logger.Info("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		// Listeners may stay silent for good; liveness is the ping loop's job.
		typ, r, err := c.conn.Reader(c.ctx)
		if err != nil {
			readErr = err
			return
		}
		message, err := io.ReadAll(r)
		if err != nil {
			c.logger.Warn("Failed to read frame", slog.Any("error", err))
			readErr = err
			return
		}
		// Ensure we are only handling text or binary messages.
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

func (c *Connection) pingInterval() time.Duration {
	return c.config.ReadTimeout / 2
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error

	var pings <-chan time.Time
	if interval := c.pingInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pings = ticker.C
	}

	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				writeErr = err
				return
			}
		case <-pings:
			if err := c.ping(); err != nil {
				c.logger.Info("Peer missed ping, closing", slog.Any("error", err))
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ping waits for the pong, which the read pump receives.
func (c *Connection) ping() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.pingInterval())
	defer cancel()
	return c.conn.Ping(ctx)
}

func (c *Connection) write(message []byte) error {
	ctx := c.ctx
	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(c.ctx, c.config.WriteTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, message)
}

// Send enqueues a message for the client. It never blocks: a closed
// connection returns ErrClosed and a full queue returns ErrSendBufferFull.
// It is safe for concurrent use.
func (c *Connection) Send(message []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	default:
		c.logger.Warn("Send buffer full, dropping frame", slog.Int("buffer", cap(c.send)))
		return ErrSendBufferFull
	}
}

// gracefully shuts down the connection and its resources.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel() // Signal goroutines to stop.
		// Deregister before the close handshake, which may wait on a dead peer.
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		if c.conn != nil {
			code, reason := websocket.StatusNormalClosure, ""
			if err != nil && status == -1 {
				code, reason = websocket.StatusGoingAway, truncateReason(err.Error())
			}
			c.conn.Close(code, reason)
		}
		if c.wg != nil {
			c.wg.Done()
		}
		close(c.done)
		c.logger.Info("Connection closed")
	})
}

// close reasons must fit in a control frame.
func truncateReason(reason string) string {
	const maxReason = 120
	if len(reason) > maxReason {
		return reason[:maxReason]
	}
	return reason
}

// returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}
