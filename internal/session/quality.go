package session

// EncodingParams are the outbound constraints handed to the capture
// pipeline when sharing starts.
type EncodingParams struct {
	FrameRate int
	Bitrate   int // bits per second
}

// DefaultFrameRate is used when no fps preference is given.
const DefaultFrameRate = 60

// Bitrate tiers, matched to frame rate.
const (
	bitrateHigh     = 20_000_000 // 120 fps and up
	bitrateMid      = 16_000_000 // 90 fps and up
	bitrateStandard = 12_000_000
)

// BitrateForFrameRate picks the outbound bitrate for a target frame
// rate: higher frame rates get more headroom so motion stays sharp.
func BitrateForFrameRate(frameRate int) int {
	switch {
	case frameRate >= 120:
		return bitrateHigh
	case frameRate >= 90:
		return bitrateMid
	default:
		return bitrateStandard
	}
}

// EncodingForFrameRate builds the full constraint set for a frame rate.
func EncodingForFrameRate(frameRate int) EncodingParams {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return EncodingParams{
		FrameRate: frameRate,
		Bitrate:   BitrateForFrameRate(frameRate),
	}
}
