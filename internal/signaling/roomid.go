package signaling

import "strings"

// Room identifiers are 3-32 characters of [A-Za-z0-9_-]. The grammar is
// enforced on every operation that accepts a room id, so a client that
// skips its own validation cannot create junk rooms.
const (
	minRoomIDLen = 3
	maxRoomIDLen = 32
)

// NormalizeRoomID trims surrounding whitespace.
func NormalizeRoomID(id string) string {
	return strings.TrimSpace(id)
}

// ValidateRoomID reports whether id matches the room identifier grammar.
func ValidateRoomID(id string) bool {
	if len(id) < minRoomIDLen || len(id) > maxRoomIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
