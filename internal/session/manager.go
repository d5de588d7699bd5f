package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

// peerEntry is one live peer connection, keyed by the remote member id.
// Initiator entries carry our outbound media; responder entries receive
// the remote sharer's.
type peerEntry struct {
	remoteID  string
	transport PeerTransport
	initiator bool
}

// Config wires a Manager to its collaborators.
type Config struct {
	Room         string
	Channel      Channel
	Source       TrackSource      // nil for a view-only client
	NewTransport TransportFactory // defaults to NewPeerTransport
	FrameRate    int              // defaults to DefaultFrameRate
}

// Manager owns the peer connection set for one room: it reacts to
// membership and sharing events from the signaling channel, creates and
// destroys peer entries, and drives negotiation per peer. There is at
// most one entry per remote id; every transition that needs an entry
// for an id with one already present tears the old one down first.
type Manager struct {
	room         string
	channel      Channel
	source       TrackSource
	newTransport TransportFactory
	frameRate    int

	mu            sync.Mutex
	peers         map[string]*peerEntry
	members       map[string]bool
	remoteSharers map[string]bool
	tracks        []webrtc.TrackLocal
	sharing       bool
	reserved      bool

	onChange func()
}

// NewManager creates a manager for one joined room.
func NewManager(cfg Config) *Manager {
	if cfg.NewTransport == nil {
		cfg.NewTransport = NewPeerTransport
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	return &Manager{
		room:          cfg.Room,
		channel:       cfg.Channel,
		source:        cfg.Source,
		newTransport:  cfg.NewTransport,
		frameRate:     cfg.FrameRate,
		peers:         make(map[string]*peerEntry),
		members:       make(map[string]bool),
		remoteSharers: make(map[string]bool),
	}
}

// SetChangeCallback registers a callback fired after any membership,
// sharing or peer-set change. Used by the TUI.
func (m *Manager) SetChangeCallback(f func()) {
	m.mu.Lock()
	m.onChange = f
	m.mu.Unlock()
}

func (m *Manager) notify() {
	m.mu.Lock()
	f := m.onChange
	m.mu.Unlock()
	if f != nil {
		f()
	}
}

// Snapshot is the manager state the UI renders.
type Snapshot struct {
	Room         string
	Members      []string
	RemoteSharer string
	Sharing      bool
	PeerCount    int
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Room:      m.room,
		Sharing:   m.sharing,
		PeerCount: len(m.peers),
	}
	for id := range m.members {
		snap.Members = append(snap.Members, id)
	}
	sort.Strings(snap.Members)
	for id := range m.remoteSharers {
		snap.RemoteSharer = id
		break
	}
	return snap
}

// SetExistingUsers installs the membership snapshot delivered on join.
func (m *Manager) SetExistingUsers(ids []string) {
	m.mu.Lock()
	m.members = make(map[string]bool, len(ids))
	for _, id := range ids {
		m.members[id] = true
	}
	m.mu.Unlock()
	m.notify()
}

// HandleUserJoined records a new member and, if we are sharing, opens
// an initiator connection to them.
func (m *Manager) HandleUserJoined(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	m.members[id] = true
	sharing := m.sharing
	m.mu.Unlock()

	if sharing {
		m.startInitiator(id)
	}
	m.notify()
}

// HandleUserLeft removes a member and any peer entry for them.
func (m *Manager) HandleUserLeft(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	delete(m.members, id)
	m.mu.Unlock()

	m.HandleSharerStopped(id)
}

// HandleSharerStarted mirrors the server's sharer slot locally. Fired
// for both user-started-sharing and the current-sharer snapshot.
func (m *Manager) HandleSharerStarted(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	m.remoteSharers[id] = true
	m.mu.Unlock()
	m.notify()
}

// HandleSharerStopped clears the local sharer mirror and tears down the
// peer entry receiving that member's media.
func (m *Manager) HandleSharerStopped(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	delete(m.remoteSharers, id)
	entry := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()

	if entry != nil {
		entry.transport.Close()
	}
	m.notify()
}

// StartSharing claims the room's share slot and opens initiator
// connections to every member known so far, not just future joiners.
func (m *Manager) StartSharing(ctx context.Context) error {
	m.mu.Lock()
	if m.sharing {
		m.mu.Unlock()
		return nil
	}
	if len(m.remoteSharers) > 0 {
		m.mu.Unlock()
		return ErrRemoteSharing
	}
	if m.source == nil {
		m.mu.Unlock()
		return ErrNoTrackSource
	}
	m.mu.Unlock()

	if err := m.channel.RequestShare(ctx, m.room); err != nil {
		return err
	}

	m.mu.Lock()
	m.reserved = true
	m.mu.Unlock()

	tracks, err := m.source.Acquire(EncodingForFrameRate(m.frameRate))
	if err != nil {
		// The reservation is held but media never started; hand the
		// slot back so someone else can share.
		m.channel.Send(signaling.Message{Event: signaling.EventCancelShare, Room: m.room})
		m.mu.Lock()
		m.reserved = false
		m.mu.Unlock()
		return fmt.Errorf("failed to acquire media: %w", err)
	}

	m.mu.Lock()
	m.tracks = tracks
	m.sharing = true
	targets := make([]string, 0, len(m.members))
	for id := range m.members {
		targets = append(targets, id)
	}
	m.mu.Unlock()

	for _, id := range targets {
		m.startInitiator(id)
	}
	m.notify()
	return nil
}

// StopSharing closes every initiator connection, releases capture and
// hands the share slot back.
func (m *Manager) StopSharing() {
	m.mu.Lock()
	if !m.sharing && !m.reserved {
		m.mu.Unlock()
		return
	}
	var closing []*peerEntry
	for id, entry := range m.peers {
		if entry.initiator {
			closing = append(closing, entry)
			delete(m.peers, id)
		}
	}
	reserved := m.reserved
	m.sharing = false
	m.reserved = false
	m.tracks = nil
	m.mu.Unlock()

	for _, entry := range closing {
		entry.transport.Close()
	}
	if m.source != nil {
		m.source.Release()
	}
	if reserved {
		m.channel.Send(signaling.Message{Event: signaling.EventStopSharing, Room: m.room})
	}
	m.notify()
}

// Close tears down every peer entry and stops sharing.
func (m *Manager) Close() {
	m.StopSharing()

	m.mu.Lock()
	entries := make([]*peerEntry, 0, len(m.peers))
	for id, entry := range m.peers {
		entries = append(entries, entry)
		delete(m.peers, id)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.transport.Close()
	}
}

// replaceEntryLocked is the single path that creates peer entries. Any
// existing entry for the id is torn down first, so there is never more
// than one transport per remote member. Callers hold m.mu.
func (m *Manager) replaceEntryLocked(remoteID string, initiator bool) (*peerEntry, error) {
	if old := m.peers[remoteID]; old != nil {
		delete(m.peers, remoteID)
		old.transport.Close()
	}

	transport, err := m.newTransport()
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for %s: %w", remoteID, err)
	}

	entry := &peerEntry{
		remoteID:  remoteID,
		transport: transport,
		initiator: initiator,
	}

	transport.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks end of gathering and is not forwarded.
		if candidate == nil {
			return
		}
		m.sendCandidate(entry, candidate.ToJSON())
	})

	transport.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			// Responder entries clean themselves up; an initiator
			// entry is only torn down by explicit action so a
			// transient transport drop does not cancel the share.
			if !entry.initiator {
				m.teardownIfCurrent(entry)
			}
		}
	})

	m.peers[remoteID] = entry
	return entry, nil
}

// teardownIfCurrent removes entry if it is still the registered entry
// for its remote id, and closes its transport either way. Stale
// negotiation goroutines end up here after their entry was replaced.
func (m *Manager) teardownIfCurrent(entry *peerEntry) {
	m.mu.Lock()
	if m.peers[entry.remoteID] == entry {
		delete(m.peers, entry.remoteID)
	}
	m.mu.Unlock()

	entry.transport.Close()
	m.notify()
}

// entryFor returns the current entry for a remote id, if any.
func (m *Manager) entryFor(remoteID string) *peerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peers[remoteID]
}

func (m *Manager) peerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}
