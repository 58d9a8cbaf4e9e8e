// Package convert turns interleaved raw captures into planar I420 frames and
// rescales I420 frames for sinks with smaller resolution caps. Everything in
// this package is a pure function over its inputs; it is safe to call from
// any number of capture goroutines concurrently.
package convert

import (
	"fmt"
	"image"

	"github.com/visgrid/framecast/internal/frame"
)

// ConversionError reports a frame whose declared geometry is inconsistent
// with its buffer. The offending frame is dropped by the caller; conversion
// of subsequent frames is unaffected.
type ConversionError struct {
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("conversion failed: %s", e.Reason)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Convert produces an I420 frame of at most targetWidth x targetHeight from
// raw. If the source aspect ratio differs from the target, the source is
// center-cropped to the target aspect before scaling, never distorted.
// Target dimensions are rounded down to even values (4:2:0 subsampling).
func Convert(raw frame.Raw, targetWidth, targetHeight int) (*frame.I420, error) {
	return ConvertCropped(raw, image.Rectangle{}, targetWidth, targetHeight)
}

// ConvertCropped is Convert restricted to a source region. A zero crop means
// the full frame. The crop is clipped to the source bounds.
func ConvertCropped(raw frame.Raw, crop image.Rectangle, targetWidth, targetHeight int) (*frame.I420, error) {
	if err := raw.Validate(); err != nil {
		return nil, &ConversionError{Reason: "inconsistent frame geometry", Err: err}
	}

	src := image.Rect(0, 0, raw.Width, raw.Height)
	if !crop.Empty() {
		src = crop.Intersect(src)
		if src.Empty() {
			return nil, &ConversionError{Reason: "crop outside frame bounds"}
		}
	}

	tw, th := targetWidth, targetHeight
	if tw <= 0 || th <= 0 {
		tw, th = src.Dx(), src.Dy()
	}
	tw &^= 1
	th &^= 1
	if tw < 2 {
		tw = 2
	}
	if th < 2 {
		th = 2
	}

	// Center-crop the source region to the target aspect ratio.
	cw, ch := src.Dx(), src.Dy()
	if cw*th > ch*tw {
		cw = ch * tw / th
	} else {
		ch = cw * th / tw
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	cx := src.Min.X + (src.Dx()-cw)/2
	cy := src.Min.Y + (src.Dy()-ch)/2

	// Channel offsets within a 4-byte pixel for the declared byte order.
	ro, bo := 0, 2
	if raw.Format == frame.FormatBGRA {
		ro, bo = 2, 0
	}

	out := frame.NewI420(tw, th, raw.Timestamp)

	// Pass 1: luma. BT.601 studio swing; for 0-255 RGB input Y lands in
	// [16,235], so no clamping is needed.
	for ty := 0; ty < th; ty++ {
		sy := cy + ty*ch/th
		row := raw.Pix[sy*raw.Stride:]
		yRow := out.Y[ty*tw : (ty+1)*tw]
		for tx := 0; tx < tw; tx++ {
			sx := cx + tx*cw/tw
			pi := sx * 4
			r := int(row[pi+ro])
			g := int(row[pi+1])
			b := int(row[pi+bo])
			yRow[tx] = byte((66*r+129*g+25*b+128)>>8 + 16)
		}
	}

	// Pass 2: chroma. Each output sample averages the 2x2 block of sampled
	// source pixels before applying the coefficients.
	cWidth := tw / 2
	for ty := 0; ty < th; ty += 2 {
		sy0 := cy + ty*ch/th
		sy1 := cy + (ty+1)*ch/th
		row0 := raw.Pix[sy0*raw.Stride:]
		row1 := raw.Pix[sy1*raw.Stride:]
		uRow := out.U[(ty/2)*cWidth : (ty/2+1)*cWidth]
		vRow := out.V[(ty/2)*cWidth : (ty/2+1)*cWidth]
		for tx := 0; tx < tw; tx += 2 {
			p0 := (cx + tx*cw/tw) * 4
			p1 := (cx + (tx+1)*cw/tw) * 4

			r := int(row0[p0+ro]) + int(row0[p1+ro]) + int(row1[p0+ro]) + int(row1[p1+ro])
			g := int(row0[p0+1]) + int(row0[p1+1]) + int(row1[p0+1]) + int(row1[p1+1])
			b := int(row0[p0+bo]) + int(row0[p1+bo]) + int(row1[p0+bo]) + int(row1[p1+bo])
			r >>= 2
			g >>= 2
			b >>= 2

			uRow[tx/2] = byte((-38*r-74*g+112*b+128)>>8 + 128)
			vRow[tx/2] = byte((112*r-94*g-18*b+128)>>8 + 128)
		}
	}

	return out, nil
}
