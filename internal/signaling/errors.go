package signaling

import "errors"

var (
	ErrInvalidRoomID  = errors.New("invalid room ID. Use 3-32 letters, numbers, hyphen or underscore")
	ErrNotAMember     = errors.New("join the room before sharing")
	ErrAlreadySharing = errors.New("another user is currently sharing")
)
