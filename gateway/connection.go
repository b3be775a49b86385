package gateway

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the lifecycle position of a connection. Joined rooms are
// membership facts tracked elsewhere, not exclusive states.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateDisconnected
)

// Connection is the per-connection state record. Every handler invocation
// receives it explicitly; no identity is captured in closures shared across
// concurrent invocations.
//
// The write side is a buffered channel drained by a single write pump, so
// fan-out from other users' handlers never interleaves raw socket writes.
type Connection struct {
	id           string
	ws           *websocket.Conn
	log          *slog.Logger
	outbound     chan event.DomainEvent
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration

	// Mutated only by the owning read loop.
	state State
	user  domain.User
}

func NewConnection(log *slog.Logger, ws *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	return &Connection{
		id:           uuid.NewString(),
		ws:           ws,
		log:          log,
		outbound:     make(chan event.DomainEvent, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (c *Connection) ID() string { return c.id }

// Consume is called by the dispatcher on fan-out. It hands the event to
// the write pump without blocking the caller: a full buffer drops the
// event (best-effort delivery), a closed connection reports it.
func (c *Connection) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	case c.outbound <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Warn("Outbound buffer full, dropping event",
			"conn_id", c.id, "event", e.EventName())
		return nil
	}
}

// writePump serializes all socket writes. It exits when the connection is
// closed or a write fails, closing the connection either way.
func (c *Connection) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case e := <-c.outbound:
			data, err := encodeEvent(e)
			if err != nil {
				c.log.Error("Failed to encode outbound event",
					"conn_id", c.id, "event", e.EventName(), "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed, closing connection",
					"conn_id", c.id, "error", err)
				return
			}
		}
	}
}

// Close is idempotent; the read loop, the write pump, and the supersession
// path may all race to call it.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// sendError reports a failure back to this connection only. Errors are
// never broadcast.
func (c *Connection) sendError(code, message string) {
	_ = c.Consume(context.Background(), event.Error{Message: message, Code: code})
}
