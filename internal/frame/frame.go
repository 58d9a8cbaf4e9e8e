// Package frame defines the pixel buffer types that flow through the
// distribution pipeline: interleaved raw captures on the way in, shared
// planar I420 frames on the way out.
package frame

import (
	"errors"
	"fmt"
	"time"
)

// PixelFormat identifies the channel order of an interleaved 4-byte pixel.
type PixelFormat string

const (
	FormatRGBA PixelFormat = "rgba"
	FormatBGRA PixelFormat = "bgra"
)

const bytesPerPixel = 4

var ErrUnknownFormat = errors.New("unknown pixel format")

// Raw is an immutable snapshot of interleaved pixel data as produced by an
// external frame source. It is consumed synchronously during conversion and
// never retained afterwards.
type Raw struct {
	Pix    []byte
	Width  int
	Height int
	// Stride is the byte distance between the starts of consecutive rows.
	// Must be at least Width*4.
	Stride    int
	Format    PixelFormat
	Timestamp time.Time
}

// Validate checks that the declared geometry is internally consistent.
func (r Raw) Validate() error {
	if r.Format != FormatRGBA && r.Format != FormatBGRA {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, r.Format)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", r.Width, r.Height)
	}
	rowBytes := r.Width * bytesPerPixel
	if r.Stride < rowBytes {
		return fmt.Errorf("stride %d smaller than row size %d", r.Stride, rowBytes)
	}
	need := r.Stride*(r.Height-1) + rowBytes
	if len(r.Pix) < need {
		return fmt.Errorf("buffer %d bytes, need %d for %dx%d stride %d",
			len(r.Pix), need, r.Width, r.Height, r.Stride)
	}
	return nil
}
