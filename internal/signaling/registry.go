package signaling

import (
	"log"
	"sync"
)

// Peer is the send side of a connected client. The websocket Client
// implements it; tests substitute an in-memory recorder.
type Peer interface {
	ID() string
	Send(msg Message)
}

// Room holds the member set and the exclusive sharer slot for one room
// id. All mutation happens under mu, coarse per room, so concurrent
// request-share calls resolve with exactly one winner and membership
// snapshots stay consistent with the broadcasts already sent.
type Room struct {
	id string

	mu           sync.Mutex
	members      map[string]Peer
	activeSharer string
	deleted      bool
}

// broadcastLocked sends msg to every member except excludeID. Callers
// must hold r.mu.
func (r *Room) broadcastLocked(excludeID string, msg Message) {
	for id, p := range r.members {
		if id == excludeID {
			continue
		}
		p.Send(msg)
	}
}

// Registry owns all rooms. Rooms are created on first join and deleted
// when the last member leaves; nothing survives a restart.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) getOrCreateRoom(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[id]; ok {
		return room
	}
	room := &Room{
		id:      id,
		members: make(map[string]Peer),
	}
	reg.rooms[id] = room
	return room
}

func (reg *Registry) getRoom(id string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[id]
}

func (reg *Registry) deleteRoomIfEmpty(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.members) == 0 && reg.rooms[room.id] == room {
		room.deleted = true
		delete(reg.rooms, room.id)
		log.Printf("Room deleted: %s", room.id)
	}
}

// Join validates roomID, creates the room if needed and adds the peer.
// It returns the other current members and the active sharer (empty if
// none), both consistent with the user-joined broadcast sent to the
// existing members.
func (reg *Registry) Join(roomID string, p Peer) (existing []string, sharer string, err error) {
	roomID = NormalizeRoomID(roomID)
	if !ValidateRoomID(roomID) {
		return nil, "", ErrInvalidRoomID
	}

	var room *Room
	for {
		room = reg.getOrCreateRoom(roomID)
		room.mu.Lock()
		if !room.deleted {
			break
		}
		// Lost a race with the last member leaving; the room was
		// removed from the registry after we looked it up.
		room.mu.Unlock()
	}
	defer room.mu.Unlock()

	room.broadcastLocked(p.ID(), Message{Event: EventUserJoined, UserID: p.ID()})
	room.members[p.ID()] = p

	existing = make([]string, 0, len(room.members)-1)
	for id := range room.members {
		if id != p.ID() {
			existing = append(existing, id)
		}
	}
	if room.activeSharer != "" && room.activeSharer != p.ID() {
		sharer = room.activeSharer
	}

	log.Printf("User %s joined room %s (%d members)", p.ID(), roomID, len(room.members))
	return existing, sharer, nil
}

// RequestShare claims the room's exclusive sharer slot for memberID.
// Idempotent for the current holder; every other caller gets
// ErrAlreadySharing while the slot is held. The check-then-set runs
// under the room lock, so N concurrent calls produce exactly one winner.
func (reg *Registry) RequestShare(roomID, memberID string) error {
	roomID = NormalizeRoomID(roomID)
	if !ValidateRoomID(roomID) {
		return ErrInvalidRoomID
	}

	room := reg.getRoom(roomID)
	if room == nil {
		return ErrNotAMember
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.members[memberID]; !ok {
		return ErrNotAMember
	}
	if room.activeSharer != "" && room.activeSharer != memberID {
		return ErrAlreadySharing
	}

	room.activeSharer = memberID
	room.broadcastLocked(memberID, Message{Event: EventStartedSharing, UserID: memberID})

	log.Printf("User %s sharing in room %s", memberID, roomID)
	return nil
}

// CancelShare releases the sharer slot before media started. Stale or
// duplicate requests are silently ignored.
func (reg *Registry) CancelShare(roomID, memberID string) {
	reg.releaseShare(roomID, memberID)
}

// StopShare releases the sharer slot after media started. Stale or
// duplicate requests are silently ignored.
func (reg *Registry) StopShare(roomID, memberID string) {
	reg.releaseShare(roomID, memberID)
}

func (reg *Registry) releaseShare(roomID, memberID string) {
	roomID = NormalizeRoomID(roomID)
	if !ValidateRoomID(roomID) {
		return
	}

	room := reg.getRoom(roomID)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.activeSharer != memberID {
		return
	}

	room.activeSharer = ""
	room.broadcastLocked(memberID, Message{Event: EventStoppedSharing, UserID: memberID})

	log.Printf("User %s stopped sharing in room %s", memberID, roomID)
}

// Leave removes memberID from the room, clearing the sharer slot if it
// held it, and deletes the room once empty. Called for every room a
// connection occupied when it disconnects.
func (reg *Registry) Leave(roomID, memberID string) {
	room := reg.getRoom(NormalizeRoomID(roomID))
	if room == nil {
		return
	}

	room.mu.Lock()
	if _, ok := room.members[memberID]; !ok {
		room.mu.Unlock()
		return
	}
	delete(room.members, memberID)
	room.broadcastLocked(memberID, Message{Event: EventUserLeft, UserID: memberID})
	if room.activeSharer == memberID {
		room.activeSharer = ""
		room.broadcastLocked(memberID, Message{Event: EventStoppedSharing, UserID: memberID})
	}
	log.Printf("User %s left room %s (%d members)", memberID, room.id, len(room.members))
	room.mu.Unlock()

	reg.deleteRoomIfEmpty(room)
}

// memberCount is a test hook for room lifecycle assertions.
func (reg *Registry) memberCount(roomID string) int {
	room := reg.getRoom(roomID)
	if room == nil {
		return -1
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.members)
}

// currentSharer is a test hook.
func (reg *Registry) currentSharer(roomID string) string {
	room := reg.getRoom(roomID)
	if room == nil {
		return ""
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.activeSharer
}
