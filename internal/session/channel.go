package session

import (
	"context"
	"errors"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

var (
	// ErrRemoteSharing means another member holds the share slot, seen
	// from the local mirror before any server round trip.
	ErrRemoteSharing = errors.New("another user is currently sharing")

	// ErrNoTrackSource means this client was configured view-only.
	ErrNoTrackSource = errors.New("no capture source configured")
)

// Channel is the client's view of the signaling connection: fire and
// forget sends plus the one callback-style request in the protocol.
type Channel interface {
	// Send queues a message for the server.
	Send(msg signaling.Message) error

	// RequestShare asks the server for the room's share slot and waits
	// for the response. A refusal or missing response is an error.
	RequestShare(ctx context.Context, roomID string) error
}
