package session

import (
	"encoding/json"
	"log"

	"github.com/pion/webrtc/v3"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

// startInitiator opens an initiator entry towards remoteID and runs the
// offer path. An initiator entry that already exists is left alone; a
// responder entry is replaced, since we are now the one sending media.
func (m *Manager) startInitiator(remoteID string) {
	m.mu.Lock()
	if !m.sharing {
		m.mu.Unlock()
		return
	}
	if existing := m.peers[remoteID]; existing != nil && existing.initiator {
		m.mu.Unlock()
		return
	}
	entry, err := m.replaceEntryLocked(remoteID, true)
	if err != nil {
		m.mu.Unlock()
		log.Printf("Failed to start connection to %s: %v", remoteID, err)
		return
	}
	tracks := m.tracks
	m.mu.Unlock()

	go m.negotiateOffer(entry, tracks)
}

// negotiateOffer runs the initiator path: attach tracks, create the
// offer, set it locally, send it. Any failure tears down this entry
// only; other peers' sessions are untouched.
func (m *Manager) negotiateOffer(entry *peerEntry, tracks []webrtc.TrackLocal) {
	for _, track := range tracks {
		if _, err := entry.transport.AddTrack(track); err != nil {
			log.Printf("Failed to add track for %s: %v", entry.remoteID, err)
			m.teardownIfCurrent(entry)
			return
		}
	}

	offer, err := entry.transport.CreateOffer(nil)
	if err != nil {
		log.Printf("Failed to create offer for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}
	if err := entry.transport.SetLocalDescription(offer); err != nil {
		log.Printf("Failed to set local description for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}

	desc, err := json.Marshal(entry.transport.LocalDescription())
	if err != nil {
		log.Printf("Failed to encode offer for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}

	m.channel.Send(signaling.Message{
		Event:       signaling.EventOffer,
		Room:        m.room,
		TargetID:    entry.remoteID,
		Description: desc,
	})
}

// HandleOffer runs the responder path for an inbound offer. The latest
// offer always wins: any existing entry for the sender is torn down
// before the new one is created, which also resolves renegotiation and
// glare.
func (m *Manager) HandleOffer(fromID string, description json.RawMessage) {
	if fromID == "" || len(description) == 0 {
		return
	}

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(description, &remote); err != nil {
		log.Printf("Invalid offer from %s: %v", fromID, err)
		return
	}

	m.mu.Lock()
	entry, err := m.replaceEntryLocked(fromID, false)
	m.mu.Unlock()
	if err != nil {
		log.Printf("Failed to accept offer from %s: %v", fromID, err)
		return
	}

	go m.negotiateAnswer(entry, remote)
}

// negotiateAnswer applies the remote offer and returns an answer.
func (m *Manager) negotiateAnswer(entry *peerEntry, remote webrtc.SessionDescription) {
	if err := entry.transport.SetRemoteDescription(remote); err != nil {
		log.Printf("Failed to apply offer from %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}

	answer, err := entry.transport.CreateAnswer(nil)
	if err != nil {
		log.Printf("Failed to create answer for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}
	if err := entry.transport.SetLocalDescription(answer); err != nil {
		log.Printf("Failed to set local description for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}

	desc, err := json.Marshal(entry.transport.LocalDescription())
	if err != nil {
		log.Printf("Failed to encode answer for %s: %v", entry.remoteID, err)
		m.teardownIfCurrent(entry)
		return
	}

	m.channel.Send(signaling.Message{
		Event:       signaling.EventAnswer,
		Room:        m.room,
		TargetID:    entry.remoteID,
		Description: desc,
	})
}

// HandleAnswer applies a remote answer to the matching initiator entry.
// Answers for unknown ids or responder entries are dropped.
func (m *Manager) HandleAnswer(fromID string, description json.RawMessage) {
	entry := m.entryFor(fromID)
	if entry == nil || !entry.initiator {
		return
	}

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(description, &remote); err != nil {
		log.Printf("Invalid answer from %s: %v", fromID, err)
		return
	}

	if err := entry.transport.SetRemoteDescription(remote); err != nil {
		log.Printf("Failed to apply answer from %s: %v", fromID, err)
		m.teardownIfCurrent(entry)
	}
}

// HandleCandidate applies a remote ICE candidate to the matching entry.
// Candidates for an id with no entry are discarded; arrival before the
// offer is a benign race the transport layer absorbs once the entry
// exists.
func (m *Manager) HandleCandidate(fromID string, candidate json.RawMessage) {
	entry := m.entryFor(fromID)
	if entry == nil {
		return
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		log.Printf("Invalid ICE candidate from %s: %v", fromID, err)
		return
	}

	if err := entry.transport.AddICECandidate(init); err != nil {
		log.Printf("Failed to add ICE candidate from %s: %v", fromID, err)
	}
}

// sendCandidate forwards a locally gathered candidate while the entry
// is current.
func (m *Manager) sendCandidate(entry *peerEntry, init webrtc.ICECandidateInit) {
	if m.entryFor(entry.remoteID) != entry {
		return
	}

	payload, err := json.Marshal(init)
	if err != nil {
		log.Printf("Failed to encode ICE candidate for %s: %v", entry.remoteID, err)
		return
	}

	m.channel.Send(signaling.Message{
		Event:     signaling.EventCandidate,
		Room:      m.room,
		TargetID:  entry.remoteID,
		Candidate: payload,
	})
}
