package signaling

import "encoding/json"

// Event names carried on the wire. Client→server events mirror the
// browser client exactly; server→client events are broadcast to room
// members or addressed to a single connection.
const (
	// client → server
	EventJoinRoom     = "join-room"
	EventRequestShare = "request-share"
	EventCancelShare  = "cancel-share"
	EventStopSharing  = "stop-sharing"

	// server → client
	EventRoomJoined     = "room-joined"
	EventRoomError      = "room-error"
	EventExistingUsers  = "existing-users"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventStartedSharing = "user-started-sharing"
	EventStoppedSharing = "user-stopped-sharing"
	EventCurrentSharer  = "current-sharer"
	EventShareResponse  = "share-response"

	// relayed both directions
	EventOffer     = "offer"
	EventAnswer    = "answer"
	EventCandidate = "ice-candidate"
)

// Message is the single wire format for all signaling traffic. Fields
// are populated per event; SDP descriptions and ICE candidates stay
// opaque to the server.
type Message struct {
	Event    string   `json:"event"`
	Room     string   `json:"room,omitempty"`
	UserID   string   `json:"userId,omitempty"`   // sender id, rewritten by the router on relay
	TargetID string   `json:"targetId,omitempty"` // relay target, client → server only
	Users    []string `json:"users,omitempty"`    // existing-users snapshot

	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`

	Error string `json:"error,omitempty"`

	// request-share / share-response correlation
	OK     bool   `json:"ok,omitempty"`
	Reason string `json:"reason,omitempty"`
	Seq    uint64 `json:"seq,omitempty"`
}
