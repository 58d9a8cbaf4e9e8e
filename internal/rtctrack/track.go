// Package rtctrack bridges the frame pipeline to a WebRTC video track.
// A Track is a broadcast sink: each delivered frame is encoded and written
// to the underlying TrackLocalStaticSample, and inbound RTCP feedback
// (PLI/FIR) is translated into keyframe requests against the encoder.
package rtctrack

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/visgrid/framecast/internal/frame"
	"github.com/visgrid/framecast/internal/logging"
)

var log = logging.L("rtctrack")

// Encoder turns planar frames into encoded access units. Implementations
// live outside this package; hardware and software codecs both fit.
type Encoder interface {
	// Encode returns one encoded access unit, or an empty slice when the
	// encoder buffered the frame without producing output.
	Encode(f *frame.I420) ([]byte, error)
	// ForceKeyframe makes the next encoded frame an IDR.
	ForceKeyframe()
	Close() error
}

// Track adapts an encoder and a local sample track into a broadcast sink.
type Track struct {
	id    string
	local *webrtc.TrackLocalStaticSample
	enc   Encoder

	mu           sync.Mutex
	lastTS       time.Time
	lastKeyframe time.Time
	closed       bool
}

// Keyframe requests from RTCP feedback are rate limited; a burst of PLIs
// after loss should cost one IDR, not one per packet.
const keyframeMinInterval = 500 * time.Millisecond

const defaultFrameDuration = 33 * time.Millisecond

// New creates an H.264 sample track with the given stream identifier.
func New(id string, enc Encoder) (*Track, error) {
	if enc == nil {
		return nil, errors.New("nil encoder")
	}
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", id,
	)
	if err != nil {
		return nil, err
	}
	return &Track{id: id, local: local, enc: enc}, nil
}

// Local exposes the pion track for AddTrack on a peer connection.
func (t *Track) Local() *webrtc.TrackLocalStaticSample { return t.local }

// OnFrame encodes and writes one frame. Encoder and transport errors are
// logged and swallowed; a failing track must not disturb other sinks.
func (t *Track) OnFrame(f *frame.I420) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	dur := defaultFrameDuration
	if !t.lastTS.IsZero() {
		if d := f.Timestamp.Sub(t.lastTS); d > 0 {
			dur = d
		}
	}
	t.lastTS = f.Timestamp
	t.mu.Unlock()

	payload, err := t.enc.Encode(f)
	if err != nil {
		log.Warn("frame encode failed", "track", t.id, "error", err)
		return
	}
	if len(payload) == 0 {
		return
	}

	if err := t.local.WriteSample(media.Sample{Data: payload, Duration: dur}); err != nil {
		log.Warn("sample write failed", "track", t.id, "error", err)
	}
}

// WatchRTCP drains RTCP from the sender and converts picture-loss feedback
// into keyframe requests. Returns when the sender closes.
func (t *Track) WatchRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			log.Debug("rtcp unmarshal failed", "track", t.id, "error", err)
			continue
		}
		for _, packet := range packets {
			switch packet.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				t.RequestKeyframe()
			}
		}
	}
}

// RequestKeyframe asks the encoder for an IDR, subject to rate limiting.
func (t *Track) RequestKeyframe() {
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastKeyframe) < keyframeMinInterval {
		t.mu.Unlock()
		return
	}
	t.lastKeyframe = now
	t.mu.Unlock()

	log.Debug("keyframe requested", "track", t.id)
	t.enc.ForceKeyframe()
}

// Close shuts down the encoder. Frames delivered after Close are dropped.
func (t *Track) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.enc.Close()
}
