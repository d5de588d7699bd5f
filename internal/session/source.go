package session

import (
	"fmt"
	"log"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// TrackSource is the capture side of a share: it produces the outbound
// tracks and accepts encoding constraints. Screen capture itself lives
// behind this interface; the session only sequences it.
type TrackSource interface {
	// Acquire starts capture with the given constraints and returns
	// the tracks to attach to each peer connection.
	Acquire(params EncodingParams) ([]webrtc.TrackLocal, error)

	// Release stops capture and invalidates the tracks.
	Release()
}

// SampleSource is a TrackSource backed by a single VP8 sample track.
// An encoder pipeline pushes frames through WriteSample; constraint
// application is best effort and failures are only logged, matching
// how capture backends behave.
type SampleSource struct {
	track  *webrtc.TrackLocalStaticSample
	params EncodingParams
}

// NewSampleSource creates an idle sample source.
func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

// Acquire creates the video track and records the encoding constraints
// for the encoder to pick up.
func (s *SampleSource) Acquire(params EncodingParams) ([]webrtc.TrackLocal, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"screen",
		"bunker-share",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	s.track = track
	s.params = params
	log.Printf("Capture started at %d fps, %d kbps", params.FrameRate, params.Bitrate/1000)
	return []webrtc.TrackLocal{track}, nil
}

// Release drops the track reference. The encoder notices the next
// WriteSample failing and stops.
func (s *SampleSource) Release() {
	s.track = nil
}

// Params returns the constraints from the last Acquire.
func (s *SampleSource) Params() EncodingParams {
	return s.params
}

// WriteSample feeds one encoded frame to the outbound track.
func (s *SampleSource) WriteSample(sample media.Sample) error {
	track := s.track
	if track == nil {
		return fmt.Errorf("source released")
	}
	return track.WriteSample(sample)
}
