package relay

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// RoomID names the broadcast room shared by two users.
type RoomID string

// CanonicalRoomID returns the room for the unordered pair {a, b}. Both users
// compute the same ID regardless of who connects first.
func CanonicalRoomID(a, b int64) RoomID {
	if a > b {
		a, b = b, a
	}
	return RoomID(fmt.Sprintf("chat_%d_%d", a, b))
}

// room is the live membership of one RoomID. members is guarded by Hub.mu;
// seq orders persist-then-broadcast so delivery follows persistence order.
type room struct {
	id      RoomID
	members map[*Client]struct{}
	seq     sync.Mutex
}

// Hub is the process-wide room registry. Rooms are created on first join and
// dropped when their last member leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[RoomID]*room
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[RoomID]*room),
	}
}

func (h *Hub) join(c *Client) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.roomID]
	if !ok {
		r = &room{id: c.roomID, members: make(map[*Client]struct{})}
		h.rooms[c.roomID] = r
		activeRooms.Inc()
	}
	r.members[c] = struct{}{}
	return r
}

// leave removes c from its room and reports whether it was a member.
func (h *Hub) leave(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.roomID]
	if !ok {
		return false
	}
	if _, ok := r.members[c]; !ok {
		return false
	}
	delete(r.members, c)
	if len(r.members) == 0 {
		delete(h.rooms, c.roomID)
		activeRooms.Dec()
		log.WithField("room", c.roomID).Debug("Room emptied")
	}
	return true
}

// snapshot copies the current members of r so a broadcast can iterate them
// without holding the registry lock.
func (h *Hub) snapshot(r *room) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(r.members)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// MemberCount returns the number of connections joined to id.
func (h *Hub) MemberCount(id RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[id]; ok {
		return len(r.members)
	}
	return 0
}
