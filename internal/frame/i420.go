package frame

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// i420Pool pools backing buffers by size. Delivery rounds allocate one full
// resolution frame plus at most one downscaled copy per constrained sink, so
// a handful of sizes stay live at a time.
var i420Pool = struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}{pools: make(map[int]*sync.Pool)}

func getI420Buffer(size int) []byte {
	i420Pool.mu.Lock()
	p, ok := i420Pool.pools[size]
	if !ok {
		p = &sync.Pool{}
		i420Pool.pools[size] = p
	}
	i420Pool.mu.Unlock()

	if v := p.Get(); v != nil {
		return v.([]byte)
	}
	return make([]byte, size)
}

func putI420Buffer(buf []byte) {
	i420Pool.mu.Lock()
	p, ok := i420Pool.pools[len(buf)]
	i420Pool.mu.Unlock()
	if ok {
		p.Put(buf)
	}
}

// I420 is a planar 4:2:0 frame. Width and Height are always even. The pixel
// planes are never mutated after construction; the frame may be shared
// read-only across any number of sinks.
//
// Frames are reference counted. NewI420 returns a frame with one reference
// owned by the caller. A holder that hands the frame to another goroutine
// calls Retain first; every holder calls Release when done. The backing
// buffer returns to the pool when the last reference drops.
type I420 struct {
	Y, U, V   []byte
	Width     int
	Height    int
	Timestamp time.Time

	refs atomic.Int32
	buf  []byte
}

// NewI420 allocates a pooled frame. Width and height must be positive and
// even; conversion and scaling enforce this upstream.
func NewI420(width, height int, ts time.Time) *I420 {
	ySize := width * height
	cSize := (width / 2) * (height / 2)
	buf := getI420Buffer(ySize + 2*cSize)

	f := &I420{
		Y:         buf[:ySize:ySize],
		U:         buf[ySize : ySize+cSize : ySize+cSize],
		V:         buf[ySize+cSize:],
		Width:     width,
		Height:    height,
		Timestamp: ts,
		buf:       buf,
	}
	f.refs.Store(1)
	return f
}

// YStride returns the byte distance between luma rows.
func (f *I420) YStride() int { return f.Width }

// CStride returns the byte distance between chroma rows.
func (f *I420) CStride() int { return f.Width / 2 }

// Retain adds a reference.
func (f *I420) Retain() *I420 {
	f.refs.Add(1)
	return f
}

// Release drops a reference. The frame must not be used after the holder's
// final Release.
func (f *I420) Release() {
	if f.refs.Add(-1) != 0 {
		return
	}
	buf := f.buf
	f.Y, f.U, f.V, f.buf = nil, nil, nil, nil
	if buf != nil {
		putI420Buffer(buf)
	}
}

// YCbCr wraps the planes as a stdlib image without copying. The returned
// image aliases the frame's buffers and is only valid while the caller holds
// a reference.
func (f *I420) YCbCr() *image.YCbCr {
	return &image.YCbCr{
		Y:              f.Y,
		Cb:             f.U,
		Cr:             f.V,
		YStride:        f.YStride(),
		CStride:        f.CStride(),
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, f.Width, f.Height),
	}
}
