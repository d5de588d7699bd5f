package signaling

import "log"

// Router relays offer/answer/ice-candidate messages between two members
// of a room. A relay that fails a precondition is dropped without any
// error back to the sender: the sender cannot tell "dropped" from "in
// flight", and recovery happens at the negotiation layer with a fresh
// offer, not by retransmission here.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Relay validates and forwards a signaling message from senderID to
// msg.TargetID in msg.Room. Offers additionally require the sender to
// hold the room's sharer slot, so only the reserved sharer can initiate
// media. The relayed message carries the sender's id and drops the
// routing fields; the description/candidate payload is untouched.
func (rt *Router) Relay(senderID string, msg Message) {
	switch msg.Event {
	case EventOffer, EventAnswer, EventCandidate:
	default:
		log.Printf("Refusing to relay event %q", msg.Event)
		return
	}

	roomID := NormalizeRoomID(msg.Room)
	if !ValidateRoomID(roomID) || msg.TargetID == "" {
		return
	}

	room := rt.registry.getRoom(roomID)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.members[senderID]; !ok {
		return
	}
	if msg.Event == EventOffer && room.activeSharer != senderID {
		return
	}
	target, ok := room.members[msg.TargetID]
	if !ok {
		return
	}

	target.Send(Message{
		Event:       msg.Event,
		UserID:      senderID,
		Description: msg.Description,
		Candidate:   msg.Candidate,
	})
}
