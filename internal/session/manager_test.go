package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/emiliancristea/bunker-sharescreen/internal/signaling"
)

// fakeTransport is a scripted PeerTransport. All callbacks fire
// synchronously from the test goroutine that triggers them.
type fakeTransport struct {
	mu          sync.Mutex
	tracks      []webrtc.TrackLocal
	localDesc   *webrtc.SessionDescription
	remoteDescs []webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	closed      bool

	offerErr     error
	answerErr    error
	setRemoteErr error

	onICE   func(*webrtc.ICECandidate)
	onState func(webrtc.PeerConnectionState)
}

func (ft *fakeTransport) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.tracks = append(ft.tracks, track)
	return nil, nil
}

func (ft *fakeTransport) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.offerErr != nil {
		return webrtc.SessionDescription{}, ft.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}, nil
}

func (ft *fakeTransport) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.answerErr != nil {
		return webrtc.SessionDescription{}, ft.answerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}, nil
}

func (ft *fakeTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.localDesc = &desc
	return nil
}

func (ft *fakeTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.setRemoteErr != nil {
		return ft.setRemoteErr
	}
	ft.remoteDescs = append(ft.remoteDescs, desc)
	return nil
}

func (ft *fakeTransport) LocalDescription() *webrtc.SessionDescription {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.localDesc
}

func (ft *fakeTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.candidates = append(ft.candidates, candidate)
	return nil
}

func (ft *fakeTransport) OnICECandidate(f func(*webrtc.ICECandidate)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.onICE = f
}

func (ft *fakeTransport) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.onState = f
}

func (ft *fakeTransport) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.closed = true
	return nil
}

func (ft *fakeTransport) isClosed() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.closed
}

func (ft *fakeTransport) trackCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.tracks)
}

func (ft *fakeTransport) remoteCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.remoteDescs)
}

func (ft *fakeTransport) candidateCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.candidates)
}

func (ft *fakeTransport) fireState(state webrtc.PeerConnectionState) {
	ft.mu.Lock()
	f := ft.onState
	ft.mu.Unlock()
	if f != nil {
		f(state)
	}
}

func (ft *fakeTransport) fireCandidate(candidate *webrtc.ICECandidate) {
	ft.mu.Lock()
	f := ft.onICE
	ft.mu.Unlock()
	if f != nil {
		f(candidate)
	}
}

// transportLog is a TransportFactory that records every transport it
// creates. failFirst makes the first creation return failErr set on the
// transport's offer path.
type transportLog struct {
	mu      sync.Mutex
	created []*fakeTransport

	firstOfferErr error
}

func (tl *transportLog) factory() (PeerTransport, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	ft := &fakeTransport{}
	if len(tl.created) == 0 {
		ft.offerErr = tl.firstOfferErr
	}
	tl.created = append(tl.created, ft)
	return ft, nil
}

func (tl *transportLog) count() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.created)
}

func (tl *transportLog) at(i int) *fakeTransport {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.created[i]
}

// fakeChannel records outbound signaling traffic.
type fakeChannel struct {
	mu       sync.Mutex
	sent     []signaling.Message
	requests int

	requestErr error
}

func (fc *fakeChannel) Send(msg signaling.Message) error {
	fc.mu.Lock()
	fc.sent = append(fc.sent, msg)
	fc.mu.Unlock()
	return nil
}

func (fc *fakeChannel) RequestShare(ctx context.Context, roomID string) error {
	fc.mu.Lock()
	fc.requests++
	err := fc.requestErr
	fc.mu.Unlock()
	return err
}

func (fc *fakeChannel) sentEvents(event string) []signaling.Message {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []signaling.Message
	for _, m := range fc.sent {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func (fc *fakeChannel) requestCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.requests
}

// fakeSource hands out one static VP8 track per acquire.
type fakeSource struct {
	mu       sync.Mutex
	acquires int
	releases int
	params   EncodingParams

	acquireErr error
}

func (fs *fakeSource) Acquire(params EncodingParams) ([]webrtc.TrackLocal, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.acquireErr != nil {
		return nil, fs.acquireErr
	}
	fs.acquires++
	fs.params = params
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "screen", "test-share")
	if err != nil {
		return nil, err
	}
	return []webrtc.TrackLocal{track}, nil
}

func (fs *fakeSource) Release() {
	fs.mu.Lock()
	fs.releases++
	fs.mu.Unlock()
}

func (fs *fakeSource) releaseCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.releases
}

func newTestManager(source TrackSource) (*Manager, *fakeChannel, *transportLog) {
	channel := &fakeChannel{}
	tl := &transportLog{}
	m := NewManager(Config{
		Room:         "demo-1",
		Channel:      channel,
		Source:       source,
		NewTransport: tl.factory,
	})
	return m, channel, tl
}

// waitUntil polls cond; negotiation runs on its own goroutines.
func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartSharingOffersToExistingMembers(t *testing.T) {
	t.Parallel()
	m, channel, tl := newTestManager(&fakeSource{})
	m.SetExistingUsers([]string{"b", "c"})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatalf("StartSharing: %v", err)
	}

	waitUntil(t, func() bool {
		return len(channel.sentEvents(signaling.EventOffer)) == 2
	}, "offers to both members")

	if tl.count() != 2 {
		t.Fatalf("transports created: got %d, want 2", tl.count())
	}
	targets := map[string]bool{}
	for _, offer := range channel.sentEvents(signaling.EventOffer) {
		if offer.Room != "demo-1" || len(offer.Description) == 0 {
			t.Errorf("offer missing fields: %+v", offer)
		}
		targets[offer.TargetID] = true
	}
	if !targets["b"] || !targets["c"] {
		t.Errorf("offer targets: %v", targets)
	}
	for i := 0; i < tl.count(); i++ {
		if tl.at(i).trackCount() != 1 {
			t.Errorf("transport %d track count: %d", i, tl.at(i).trackCount())
		}
	}
}

func TestStartSharingIdempotent(t *testing.T) {
	t.Parallel()
	m, channel, _ := newTestManager(&fakeSource{})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := channel.requestCount(); n != 1 {
		t.Errorf("share requests: got %d, want 1", n)
	}
}

func TestStartSharingBlockedByRemoteSharer(t *testing.T) {
	t.Parallel()
	m, channel, _ := newTestManager(&fakeSource{})
	m.HandleSharerStarted("x")

	if err := m.StartSharing(context.Background()); !errors.Is(err, ErrRemoteSharing) {
		t.Fatalf("StartSharing: got %v, want ErrRemoteSharing", err)
	}
	if n := channel.requestCount(); n != 0 {
		t.Errorf("share slot requested despite remote sharer: %d requests", n)
	}
}

func TestStartSharingWithoutSource(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(nil)

	if err := m.StartSharing(context.Background()); !errors.Is(err, ErrNoTrackSource) {
		t.Fatalf("StartSharing: got %v, want ErrNoTrackSource", err)
	}
}

func TestStartSharingRequestRefused(t *testing.T) {
	t.Parallel()
	source := &fakeSource{}
	channel := &fakeChannel{requestErr: fmt.Errorf("slot taken")}
	tl := &transportLog{}
	m := NewManager(Config{Room: "demo-1", Channel: channel, Source: source, NewTransport: tl.factory})

	if err := m.StartSharing(context.Background()); err == nil {
		t.Fatal("StartSharing succeeded despite refusal")
	}
	source.mu.Lock()
	acquires := source.acquires
	source.mu.Unlock()
	if acquires != 0 {
		t.Errorf("capture acquired despite refusal")
	}
	if m.Snapshot().Sharing {
		t.Error("sharing flag set despite refusal")
	}
}

func TestStartSharingAcquireFailureCancelsReservation(t *testing.T) {
	t.Parallel()
	source := &fakeSource{acquireErr: fmt.Errorf("no display")}
	channel := &fakeChannel{}
	tl := &transportLog{}
	m := NewManager(Config{Room: "demo-1", Channel: channel, Source: source, NewTransport: tl.factory})

	if err := m.StartSharing(context.Background()); err == nil {
		t.Fatal("StartSharing succeeded without capture")
	}
	if got := channel.sentEvents(signaling.EventCancelShare); len(got) != 1 {
		t.Fatalf("cancel-share sends: %d", len(got))
	}
	if m.Snapshot().Sharing {
		t.Error("sharing flag set despite capture failure")
	}

	// The slot was handed back; stopping now must not send stop-sharing.
	m.StopSharing()
	if got := channel.sentEvents(signaling.EventStopSharing); len(got) != 0 {
		t.Errorf("stop-sharing sent after cancel: %v", got)
	}
}

func TestStopSharingClosesInitiatorsAndReleasesSlot(t *testing.T) {
	t.Parallel()
	source := &fakeSource{}
	channel := &fakeChannel{}
	tl := &transportLog{}
	m := NewManager(Config{Room: "demo-1", Channel: channel, Source: source, NewTransport: tl.factory})
	m.SetExistingUsers([]string{"b"})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool {
		return len(channel.sentEvents(signaling.EventOffer)) == 1
	}, "initiator offer")

	m.StopSharing()

	if !tl.at(0).isClosed() {
		t.Error("initiator transport left open")
	}
	if got := channel.sentEvents(signaling.EventStopSharing); len(got) != 1 {
		t.Errorf("stop-sharing sends: %d", len(got))
	}
	if source.releaseCount() != 1 {
		t.Errorf("source releases: %d", source.releaseCount())
	}
	snap := m.Snapshot()
	if snap.Sharing || snap.PeerCount != 0 {
		t.Errorf("snapshot after stop: %+v", snap)
	}
}

func TestUserJoinedWhileSharingGetsOffer(t *testing.T) {
	t.Parallel()
	m, channel, _ := newTestManager(&fakeSource{})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.HandleUserJoined("late")

	waitUntil(t, func() bool {
		offers := channel.sentEvents(signaling.EventOffer)
		return len(offers) == 1 && offers[0].TargetID == "late"
	}, "offer to late joiner")
}

func TestUserLeftRemovesEntry(t *testing.T) {
	t.Parallel()
	m, channel, tl := newTestManager(&fakeSource{})
	m.SetExistingUsers([]string{"b"})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool {
		return len(channel.sentEvents(signaling.EventOffer)) == 1
	}, "initiator offer")

	m.HandleUserLeft("b")

	if m.peerCount() != 0 {
		t.Errorf("peer count after leave: %d", m.peerCount())
	}
	if !tl.at(0).isClosed() {
		t.Error("transport left open after member left")
	}
	if got := m.Snapshot().Members; len(got) != 0 {
		t.Errorf("members after leave: %v", got)
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	t.Parallel()
	m, channel, tl := newTestManager(&fakeSource{})
	m.SetExistingUsers([]string{"b"})
	m.HandleOffer("viewer", json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`))

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool {
		return len(channel.sentEvents(signaling.EventOffer)) == 1
	}, "initiator offer")

	m.Close()

	if m.peerCount() != 0 {
		t.Errorf("peer count after close: %d", m.peerCount())
	}
	for i := 0; i < tl.count(); i++ {
		if !tl.at(i).isClosed() {
			t.Errorf("transport %d left open after close", i)
		}
	}
}

func TestPerPeerFailureIsolation(t *testing.T) {
	t.Parallel()
	source := &fakeSource{}
	channel := &fakeChannel{}
	tl := &transportLog{firstOfferErr: fmt.Errorf("scripted failure")}
	m := NewManager(Config{Room: "demo-1", Channel: channel, Source: source, NewTransport: tl.factory})
	m.SetExistingUsers([]string{"b", "c"})

	if err := m.StartSharing(context.Background()); err != nil {
		t.Fatal(err)
	}

	// One peer's negotiation fails and is torn down; the other completes.
	waitUntil(t, func() bool {
		return len(channel.sentEvents(signaling.EventOffer)) == 1 && m.peerCount() == 1
	}, "surviving peer after scripted failure")

	if !tl.at(0).isClosed() {
		t.Error("failed transport left open")
	}
	if m.Snapshot().Sharing != true {
		t.Error("sharing cancelled by a single peer failure")
	}
}
