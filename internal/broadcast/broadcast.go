// Package broadcast fans converted frames out to a dynamic set of sinks,
// honoring each sink's resolution cap and pacing interval independently so a
// slow or constrained consumer never dictates the master frame rate.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/visgrid/framecast/internal/convert"
	"github.com/visgrid/framecast/internal/frame"
	"github.com/visgrid/framecast/internal/logging"
	"github.com/visgrid/framecast/internal/workerpool"
)

var log = logging.L("broadcast")

// Sink receives converted frames. The frame reference is valid for the
// duration of the call; a sink that retains it must call Retain before
// returning and Release when done. Sink values are used as registry keys and
// must be comparable (pointer types qualify).
type Sink interface {
	OnFrame(f *frame.I420)
}

// Wants declares a sink's capability constraints. Zero values mean
// unconstrained.
type Wants struct {
	// MaxWidth/MaxHeight cap the delivered resolution; larger frames are
	// downscaled proportionally for this sink only.
	MaxWidth  int
	MaxHeight int
	// Alignment forces delivered dimensions to a multiple of this value
	// (some encoders require 16-pixel macroblock alignment).
	Alignment int
	// MinFrameInterval is the minimum spacing between frames delivered to
	// this sink, measured on frame timestamps. Frames arriving early are
	// skipped for this sink only, never queued.
	MinFrameInterval time.Duration
}

// drainTimeout bounds how long a removed sink's dispatch worker may take to
// finish its in-flight frame.
const drainTimeout = 2 * time.Second

type entry struct {
	sink  Sink
	wants Wants
	pool  *workerpool.Pool // nil when dispatching synchronously

	// Pacing state, guarded by the broadcaster lock.
	lastDelivered time.Time
	hasDelivered  bool
}

// Options configure a Broadcaster.
type Options struct {
	// AsyncDispatch hands each sink's callbacks to a dedicated single-worker
	// pool so one blocking sink cannot stall the delivery round. The single
	// worker preserves per-sink frame order; a busy worker means the frame
	// is dropped for that sink.
	AsyncDispatch bool
	// QueueSize is the per-sink dispatch queue depth (async only).
	// Default 1: at most one frame waiting behind the in-flight one.
	QueueSize int
}

// Broadcaster maintains the live sink registry and delivers each frame to
// every current sink. Registry mutation and delivery may be invoked
// concurrently from different goroutines; a single lock guards the registry,
// and delivery iterates over a snapshot taken under that lock so slow sink
// callbacks run without holding it.
type Broadcaster struct {
	mu      sync.Mutex
	entries map[Sink]*entry
	opts    Options
	metrics Metrics
}

func New(opts Options) *Broadcaster {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	return &Broadcaster{
		entries: make(map[Sink]*entry),
		opts:    opts,
	}
}

// AddOrUpdateSink registers a sink or replaces the constraints of an already
// registered one. The sink starts receiving frames from the next delivery
// round; an update keeps the sink's pacing state so changing wants mid-stream
// cannot produce an early frame.
func (b *Broadcaster) AddOrUpdateSink(sink Sink, wants Wants) {
	if sink == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[sink]; ok {
		e.wants = wants
		return
	}
	e := &entry{sink: sink, wants: wants}
	if b.opts.AsyncDispatch {
		e.pool = workerpool.New(1, b.opts.QueueSize)
	}
	b.entries[sink] = e
}

// RemoveSink unregisters a sink. A delivery already in flight to the sink is
// allowed to complete, but no further frame reaches it. Removing a sink that
// is not registered is a no-op.
func (b *Broadcaster) RemoveSink(sink Sink) {
	b.mu.Lock()
	e, ok := b.entries[sink]
	if ok {
		delete(b.entries, sink)
	}
	b.mu.Unlock()

	if ok && e.pool != nil {
		e.pool.StopAccepting()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			e.pool.Drain(ctx)
		}()
	}
}

// RemoveAll unregisters every sink.
func (b *Broadcaster) RemoveAll() {
	b.mu.Lock()
	entries := b.entries
	b.entries = make(map[Sink]*entry)
	b.mu.Unlock()

	for _, e := range entries {
		if e.pool != nil {
			e.pool.StopAccepting()
		}
	}
	for _, e := range entries {
		if e.pool != nil {
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			e.pool.Drain(ctx)
			cancel()
		}
	}
}

// Len reports the number of registered sinks.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// AggregateWants combines the constraints of all registered sinks into the
// demand the capture side should satisfy: the largest requested resolution
// (zero if any sink is uncapped) and the shortest pacing interval (zero if
// any sink is unpaced). Per-sink downscaling covers smaller consumers.
func (b *Broadcaster) AggregateWants() Wants {
	b.mu.Lock()
	defer b.mu.Unlock()

	var agg Wants
	first := true
	for _, e := range b.entries {
		if first {
			agg = e.wants
			first = false
			continue
		}
		if agg.MaxWidth != 0 && (e.wants.MaxWidth == 0 || e.wants.MaxWidth > agg.MaxWidth) {
			agg.MaxWidth = e.wants.MaxWidth
		}
		if agg.MaxHeight != 0 && (e.wants.MaxHeight == 0 || e.wants.MaxHeight > agg.MaxHeight) {
			agg.MaxHeight = e.wants.MaxHeight
		}
		if e.wants.Alignment > agg.Alignment {
			agg.Alignment = e.wants.Alignment
		}
		if agg.MinFrameInterval != 0 && (e.wants.MinFrameInterval == 0 || e.wants.MinFrameInterval < agg.MinFrameInterval) {
			agg.MinFrameInterval = e.wants.MinFrameInterval
		}
	}
	return agg
}

type delivery struct {
	sink  Sink
	wants Wants
	pool  *workerpool.Pool
}

// Deliver hands the frame to every registered sink whose pacing interval has
// elapsed, downscaling per sink where the frame exceeds the sink's cap.
// Pacing decisions and the registry snapshot happen under the lock; the
// potentially slow per-sink work happens outside it. Frames are delivered to
// each sink in non-decreasing timestamp order; pacing skips frames but never
// reorders them.
func (b *Broadcaster) Deliver(f *frame.I420) {
	b.mu.Lock()
	targets := make([]delivery, 0, len(b.entries))
	for _, e := range b.entries {
		if e.wants.MinFrameInterval > 0 && e.hasDelivered &&
			f.Timestamp.Sub(e.lastDelivered) < e.wants.MinFrameInterval {
			b.metrics.recordSkip()
			continue
		}
		e.lastDelivered = f.Timestamp
		e.hasDelivered = true
		targets = append(targets, delivery{sink: e.sink, wants: e.wants, pool: e.pool})
	}
	b.mu.Unlock()

	for _, d := range targets {
		out := b.adapt(f, d.wants)
		if d.pool == nil {
			b.invoke(d.sink, out)
			continue
		}
		sink, fr := d.sink, out
		if !d.pool.Submit(func() { b.invoke(sink, fr) }) {
			// Worker still busy with a previous frame: drop, don't queue.
			fr.Release()
			b.metrics.recordDrop()
		}
	}
}

// adapt returns the frame to hand to a sink with the given wants, downscaled
// if the frame exceeds the sink's resolution cap. The returned frame carries
// a reference owned by the delivery path.
func (b *Broadcaster) adapt(f *frame.I420, wants Wants) *frame.I420 {
	dw, dh := convert.FitWithin(f.Width, f.Height, wants.MaxWidth, wants.MaxHeight, wants.Alignment)
	if dw >= f.Width && dh >= f.Height {
		return f.Retain()
	}
	t0 := time.Now()
	scaled := convert.Scale(f, dw, dh)
	b.metrics.recordScale(time.Since(t0))
	return scaled
}

// invoke runs a single sink callback with panic containment. A panicking
// sink loses this frame and is logged; delivery to other sinks continues.
func (b *Broadcaster) invoke(sink Sink, f *frame.I420) {
	defer f.Release()
	defer func() {
		if r := recover(); r != nil {
			b.metrics.recordFailure()
			log.Error("sink callback panicked", "panic", r)
		}
	}()
	sink.OnFrame(f)
	b.metrics.recordDeliver()
}

// Metrics returns a snapshot of delivery counters.
func (b *Broadcaster) Metrics() MetricsSnapshot {
	return b.metrics.Snapshot()
}
