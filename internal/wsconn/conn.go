// Package wsconn adapts gorilla/websocket connections to broadcast handles.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/affanhamid/editor/taskhub/internal/broadcast"
)

// State is the lifecycle of a connection: Connecting -> Connected -> Disconnected.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = errors.New("connection closed")

const defaultWriteTimeout = 5 * time.Second

// Conn is one live websocket client. Writes are serialised; gorilla allows a
// single concurrent writer.
type Conn struct {
	id    string
	ws    *websocket.Conn
	state atomic.Int32

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// New wraps an upgraded websocket connection.
func New(ws *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		done: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool { return c.State() == StateDisconnected }

// Done is closed when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send writes payload as a text frame. The write deadline comes from ctx, or
// a default when ctx has none. Any write failure closes the connection.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if c.Closed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		c.Close()
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.Close()
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("write frame: %w", broadcast.ErrSendTimeout)
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close tears the connection down. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) markConnected() {
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
}
