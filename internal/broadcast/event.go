// Package broadcast fans task, comment and notification events out to the
// live connections subscribed to a room.
package broadcast

import (
	"context"
	"errors"
)

// Event types emitted by the service.
const (
	TypeTaskCreated       = "task_created"
	TypeTaskUpdated       = "task_updated"
	TypeTaskDeleted       = "task_deleted"
	TypeCommentCreated    = "comment_created"
	TypeNotification      = "notification"
	TypeDependencyAdded   = "dependency_added"
	TypeDependencyRemoved = "dependency_removed"
	TypeHeartbeat         = "heartbeat"
)

// Event is forwarded verbatim to subscribers. Data is defined by the producer.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var (
	// ErrInvalidRoomKey is a programming error: rooms are never addressed by
	// an empty key.
	ErrInvalidRoomKey = errors.New("invalid room key")
	// ErrSendTimeout is reported by handles whose peer did not accept a
	// frame in time.
	ErrSendTimeout = errors.New("send timed out")
	// ErrQueueFull means the dispatcher dropped the event.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrClosed is returned by Publish after the dispatcher has been closed.
	ErrClosed = errors.New("dispatcher closed")
)

// Handle is one live bidirectional connection.
type Handle interface {
	// ID is unique for the lifetime of the process.
	ID() string
	// Send writes one frame. It must honour ctx's deadline.
	Send(ctx context.Context, payload []byte) error
	Closed() bool
}

// Publisher accepts events for asynchronous delivery.
type Publisher interface {
	Publish(key RoomKey, ev Event) error
}
