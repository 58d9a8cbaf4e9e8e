// Package capture is the entry point for newly produced frames. A Capturer
// owns the current target-resolution policy, converts each incoming raw
// frame, and pushes the result to its broadcaster. A TrackSource wraps a
// Capturer bound to a registered frame source and exposes the generic
// subscribe/unsubscribe contract to transport-layer collaborators.
package capture

import (
	"image"
	"sync"
	"time"

	"github.com/visgrid/framecast/internal/broadcast"
	"github.com/visgrid/framecast/internal/convert"
	"github.com/visgrid/framecast/internal/frame"
	"github.com/visgrid/framecast/internal/logging"
)

var log = logging.L("capture")

// Config sets the capture-side ceilings. Zero values mean native resolution
// and unpaced capture.
type Config struct {
	TargetWidth  int
	TargetHeight int
	MaxFPS       int
	Broadcast    broadcast.Options
}

// policy is the active conversion target, recomputed when the sink set
// changes and read on every frame.
type policy struct {
	targetWidth  int
	targetHeight int
	crop         image.Rectangle
}

// Capturer converts raw frames and feeds exactly one broadcaster.
// OnCaptureResult runs synchronously on the frame source's goroutine;
// sink registry mutation may happen concurrently from other goroutines.
type Capturer struct {
	mu     sync.Mutex
	cfg    Config
	policy policy

	// Pacing intervals. The effective interval is the largest of the three:
	// the configured ceiling, the governor's current limit, and the
	// aggregated sink demand (nonzero only when every sink is paced).
	baseInterval     time.Duration
	governedInterval time.Duration
	aggInterval      time.Duration

	lastTimestamp time.Time // monotonicity guard
	lastOutput    time.Time // capture-level pacing state
	hasOutput     bool

	lastSrcWidth  int
	lastSrcHeight int

	b       *broadcast.Broadcaster
	metrics Metrics
}

func New(cfg Config) *Capturer {
	c := &Capturer{
		cfg: cfg,
		policy: policy{
			targetWidth:  cfg.TargetWidth,
			targetHeight: cfg.TargetHeight,
		},
		b: broadcast.New(cfg.Broadcast),
	}
	if cfg.MaxFPS > 0 {
		c.baseInterval = time.Second / time.Duration(cfg.MaxFPS)
	}
	c.metrics.start()
	return c
}

// OnCaptureResult accepts one raw frame from the external frame source. It
// never blocks beyond the synchronous conversion and delivery round, never
// panics across the capture boundary, and never halts subsequent frames: a
// bad frame is logged and dropped.
func (c *Capturer) OnCaptureResult(raw frame.Raw) {
	c.metrics.recordReceive()

	c.mu.Lock()
	if !c.lastTimestamp.IsZero() && raw.Timestamp.Before(c.lastTimestamp) {
		c.mu.Unlock()
		c.metrics.recordDrop()
		log.Debug("out-of-order frame dropped",
			"timestamp", raw.Timestamp, "last", c.lastTimestamp)
		return
	}
	c.lastTimestamp = raw.Timestamp

	if iv := c.effectiveIntervalLocked(); iv > 0 && c.hasOutput &&
		raw.Timestamp.Sub(c.lastOutput) < iv {
		c.mu.Unlock()
		c.metrics.recordSkip()
		return
	}

	if raw.Width != c.lastSrcWidth || raw.Height != c.lastSrcHeight {
		if c.lastSrcWidth != 0 {
			log.Info("source resolution changed",
				"width", raw.Width, "height", raw.Height,
				"prevWidth", c.lastSrcWidth, "prevHeight", c.lastSrcHeight)
		}
		c.lastSrcWidth = raw.Width
		c.lastSrcHeight = raw.Height
	}
	pol := c.policy
	c.mu.Unlock()

	t0 := time.Now()
	f, err := convert.ConvertCropped(raw, pol.crop, pol.targetWidth, pol.targetHeight)
	if err != nil {
		c.metrics.recordDrop()
		log.Warn("frame conversion failed", "error", err,
			"width", raw.Width, "height", raw.Height, "stride", raw.Stride)
		return
	}
	c.metrics.recordConvert(time.Since(t0))

	c.mu.Lock()
	c.lastOutput = raw.Timestamp
	c.hasOutput = true
	c.mu.Unlock()

	c.b.Deliver(f)
	f.Release()
}

// AddOrUpdateSink registers a sink with the broadcaster and refreshes the
// capture policy from the new aggregate demand.
func (c *Capturer) AddOrUpdateSink(sink broadcast.Sink, wants broadcast.Wants) {
	c.b.AddOrUpdateSink(sink, wants)
	c.refreshPolicy()
}

// RemoveSink unregisters a sink and refreshes the capture policy.
func (c *Capturer) RemoveSink(sink broadcast.Sink) {
	c.b.RemoveSink(sink)
	c.refreshPolicy()
}

// RemoveAllSinks unregisters every sink.
func (c *Capturer) RemoveAllSinks() {
	c.b.RemoveAll()
	c.refreshPolicy()
}

// SetCrop restricts conversion to a source region. A zero rectangle restores
// the full frame.
func (c *Capturer) SetCrop(r image.Rectangle) {
	c.mu.Lock()
	c.policy.crop = r
	c.mu.Unlock()
}

// SetMaxFPS lowers (or restores) the capture frame rate at runtime; the
// governor calls this under CPU pressure. Zero removes the governed limit.
// The configured ceiling still applies.
func (c *Capturer) SetMaxFPS(fps int) {
	c.mu.Lock()
	if fps > 0 {
		c.governedInterval = time.Second / time.Duration(fps)
	} else {
		c.governedInterval = 0
	}
	c.mu.Unlock()
}

// refreshPolicy recomputes the conversion target from the configured ceiling
// and the aggregated sink wants. The policy swap is atomic with respect to
// frame processing: the next frame sees either the old or the new target,
// never a mix.
func (c *Capturer) refreshPolicy() {
	agg := c.b.AggregateWants()

	c.mu.Lock()
	defer c.mu.Unlock()

	tw, th := c.cfg.TargetWidth, c.cfg.TargetHeight
	if agg.MaxWidth > 0 && (tw == 0 || agg.MaxWidth < tw) {
		tw = agg.MaxWidth
	}
	if agg.MaxHeight > 0 && (th == 0 || agg.MaxHeight < th) {
		th = agg.MaxHeight
	}
	if tw != c.policy.targetWidth || th != c.policy.targetHeight {
		log.Info("capture target changed",
			"width", tw, "height", th,
			"prevWidth", c.policy.targetWidth, "prevHeight", c.policy.targetHeight)
		c.policy.targetWidth = tw
		c.policy.targetHeight = th
	}
	c.aggInterval = agg.MinFrameInterval
}

func (c *Capturer) effectiveIntervalLocked() time.Duration {
	iv := c.baseInterval
	if c.governedInterval > iv {
		iv = c.governedInterval
	}
	if c.aggInterval > iv {
		iv = c.aggInterval
	}
	return iv
}

// Target reports the current conversion target (zero means native).
func (c *Capturer) Target() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.targetWidth, c.policy.targetHeight
}

// SinkCount reports the number of registered sinks.
func (c *Capturer) SinkCount() int { return c.b.Len() }

// Metrics returns a snapshot of capture counters.
func (c *Capturer) Metrics() MetricsSnapshot { return c.metrics.Snapshot() }

// BroadcastMetrics returns a snapshot of the broadcaster's delivery counters.
func (c *Capturer) BroadcastMetrics() broadcast.MetricsSnapshot { return c.b.Metrics() }
