package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visgrid/framecast/internal/broadcast"
)

// ErrSourceUnavailable is returned by Create when the source identifier does
// not resolve to a registered frame source.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// TrackSource is the externally visible capability object a remote-session
// component binds to. It exclusively owns its Capturer; closing the track
// source detaches from the frame source and removes all sinks.
type TrackSource struct {
	sourceID  string
	capturer  *Capturer
	detach    func()
	closeOnce sync.Once
}

// Create constructs a Capturer bound to the frame source registered under
// sourceID and wraps it. Recognized options: target_width, target_height,
// max_fps; unrecognized options are ignored. An unresolvable identifier
// yields a nil track source and ErrSourceUnavailable.
func Create(sourceID string, opts map[string]string) (*TrackSource, error) {
	return CreateWithDispatch(sourceID, opts, broadcast.Options{})
}

// CreateWithDispatch is Create with explicit broadcaster dispatch options.
func CreateWithDispatch(sourceID string, opts map[string]string, bcast broadcast.Options) (*TrackSource, error) {
	src := lookupSource(sourceID)
	if src == nil {
		return nil, fmt.Errorf("%w: %q", ErrSourceUnavailable, sourceID)
	}

	capturer := New(parseOptions(opts, bcast))
	detach, err := src.Attach(capturer.OnCaptureResult)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSourceUnavailable, sourceID, err)
	}

	log.Info("track source created", "source", sourceID,
		"targetWidth", capturer.cfg.TargetWidth,
		"targetHeight", capturer.cfg.TargetHeight,
		"maxFps", capturer.cfg.MaxFPS)

	return &TrackSource{
		sourceID: sourceID,
		capturer: capturer,
		detach:   detach,
	}, nil
}

// SourceID reports the identifier the track source was created with.
func (t *TrackSource) SourceID() string { return t.sourceID }

// AddOrUpdateSink subscribes a transport-layer sink with its capability
// constraints.
func (t *TrackSource) AddOrUpdateSink(sink broadcast.Sink, wants broadcast.Wants) {
	t.capturer.AddOrUpdateSink(sink, wants)
}

// RemoveSink unsubscribes a sink. Unknown sinks are a no-op.
func (t *TrackSource) RemoveSink(sink broadcast.Sink) {
	t.capturer.RemoveSink(sink)
}

// SetMaxFPS adjusts the runtime frame-rate limit (governor hook).
func (t *TrackSource) SetMaxFPS(fps int) { t.capturer.SetMaxFPS(fps) }

// Capturer exposes the owned capturer for metrics and policy inspection.
func (t *TrackSource) Capturer() *Capturer { return t.capturer }

// Close detaches from the frame source and removes all sinks. Safe to call
// more than once.
func (t *TrackSource) Close() {
	t.closeOnce.Do(func() {
		t.detach()
		t.capturer.RemoveAllSinks()
		log.Info("track source closed", "source", t.sourceID)
	})
}
