package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSendTimeout = 5 * time.Second
	defaultMaxParallel = 16
)

// Options configures a Hub. Zero values select defaults.
type Options struct {
	SendTimeout time.Duration
	// MaxParallelSends bounds concurrent sends within one Publish call.
	MaxParallelSends int
	Logger           *slog.Logger
}

// Hub owns the rooms of one service instance. The hub lock guards the room
// table and the membership index; each Room guards its own members, so
// publishing to one room never waits on another.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[RoomKey]*Room
	memberships map[string]map[RoomKey]Handle

	sendTimeout time.Duration
	maxParallel int
	log         *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	h := &Hub{
		rooms:       make(map[RoomKey]*Room),
		memberships: make(map[string]map[RoomKey]Handle),
		sendTimeout: opts.SendTimeout,
		maxParallel: opts.MaxParallelSends,
		log:         opts.Logger,
	}
	if h.sendTimeout <= 0 {
		h.sendTimeout = defaultSendTimeout
	}
	if h.maxParallel <= 0 {
		h.maxParallel = defaultMaxParallel
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

// Connect adds h to the room named key, creating the room if needed.
func (h *Hub) Connect(handle Handle, key RoomKey) error {
	if key == "" {
		return ErrInvalidRoomKey
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[key]
	if !ok {
		room = newRoom(key)
		h.rooms[key] = room
		h.log.Debug("room created", "room", key)
	}
	room.add(handle)

	rooms := h.memberships[handle.ID()]
	if rooms == nil {
		rooms = make(map[RoomKey]Handle)
		h.memberships[handle.ID()] = rooms
	}
	rooms[key] = handle
	return nil
}

// Disconnect removes handle from the room. Unknown handles and rooms are a
// no-op. The room is dropped once it has no members.
func (h *Hub) Disconnect(handle Handle, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(handle.ID(), key)
}

// DisconnectAll removes handle from every room it joined. Transports call it
// on teardown.
func (h *Hub) DisconnectAll(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.memberships[handle.ID()] {
		h.disconnectLocked(handle.ID(), key)
	}
}

func (h *Hub) disconnectLocked(id string, key RoomKey) {
	if rooms := h.memberships[id]; rooms != nil {
		delete(rooms, key)
		if len(rooms) == 0 {
			delete(h.memberships, id)
		}
	}
	room, ok := h.rooms[key]
	if !ok {
		return
	}
	if _, empty := room.remove(id); empty {
		delete(h.rooms, key)
		h.log.Debug("room removed", "room", key)
	}
}

// Publish delivers ev to every handle currently in the room and returns how
// many sends succeeded. A handle that is closed, fails, or times out is
// pruned from the room; its failure never reaches the caller.
func (h *Hub) Publish(ctx context.Context, key RoomKey, ev Event) (int, error) {
	if key == "" {
		return 0, ErrInvalidRoomKey
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	h.mu.RLock()
	room := h.rooms[key]
	h.mu.RUnlock()
	if room == nil {
		return 0, nil
	}
	members := room.snapshot()

	var (
		mu     sync.Mutex
		failed []Handle
	)
	g := new(errgroup.Group)
	g.SetLimit(h.maxParallel)
	for _, member := range members {
		g.Go(func() error {
			if err := h.send(ctx, member, payload); err != nil {
				h.log.Debug("send failed, pruning", "room", key, "conn", member.ID(), "err", err)
				mu.Lock()
				failed = append(failed, member)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, member := range failed {
		h.Disconnect(member, key)
	}
	return len(members) - len(failed), nil
}

// send runs on its own goroutine, so a panicking handle is turned into a
// failure here and pruned like any other.
func (h *Hub) send(ctx context.Context, handle Handle, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in send: %v", r)
		}
	}()
	if handle.Closed() {
		return io.ErrClosedPipe
	}
	ctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	return handle.Send(ctx, payload)
}

// Members returns the number of handles in the room.
func (h *Hub) Members(key RoomKey) int {
	h.mu.RLock()
	room := h.rooms[key]
	h.mu.RUnlock()
	if room == nil {
		return 0
	}
	return room.Len()
}

// Rooms returns the number of non-empty rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomsOf returns the rooms handle currently belongs to.
func (h *Hub) RoomsOf(handle Handle) []RoomKey {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]RoomKey, 0, len(h.memberships[handle.ID()]))
	for key := range h.memberships[handle.ID()] {
		keys = append(keys, key)
	}
	return keys
}

// Close empties the hub and closes every handle that implements io.Closer.
func (h *Hub) Close() {
	h.mu.Lock()
	handles := make([]Handle, 0, len(h.memberships))
	for _, rooms := range h.memberships {
		for _, handle := range rooms {
			handles = append(handles, handle)
			break
		}
	}
	h.rooms = make(map[RoomKey]*Room)
	h.memberships = make(map[string]map[RoomKey]Handle)
	h.mu.Unlock()

	for _, handle := range handles {
		if c, ok := handle.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
