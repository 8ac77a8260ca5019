package broadcast

import (
	"fmt"
	"sync"
)

// RoomKey names a Room. Keys are "<kind>_<id>" so producers and the transport
// agree on room identity without a shared registry.
type RoomKey string

// ProjectRoom returns the key of the room for a project.
func ProjectRoom(projectID int64) RoomKey { return roomKey("project", projectID) }

// WorkspaceRoom returns the key of the room for a workspace.
func WorkspaceRoom(workspaceID int64) RoomKey { return roomKey("workspace", workspaceID) }

// UserRoom returns the key of the room for a single user.
func UserRoom(userID int64) RoomKey { return roomKey("user", userID) }

func roomKey(kind string, id int64) RoomKey {
	return RoomKey(fmt.Sprintf("%s_%d", kind, id))
}

// Room is a set of connected handles. It holds membership only; the
// transport owns each handle's lifecycle.
type Room struct {
	key     RoomKey
	mu      sync.RWMutex
	members map[string]Handle
}

func newRoom(key RoomKey) *Room {
	return &Room{key: key, members: make(map[string]Handle)}
}

// Key returns the room key.
func (r *Room) Key() RoomKey { return r.key }

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) add(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[h.ID()] = h
}

// remove drops id and reports whether it was a member and whether the room
// is now empty.
func (r *Room) remove(id string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, removed = r.members[id]
	delete(r.members, id)
	return removed, len(r.members) == 0
}

func (r *Room) snapshot() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.members))
	for _, h := range r.members {
		out = append(out, h)
	}
	return out
}
