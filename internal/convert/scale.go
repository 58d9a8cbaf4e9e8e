package convert

import (
	"github.com/visgrid/framecast/internal/frame"
)

// Scale produces a nearest-neighbor rescaled copy of an I420 frame. Target
// dimensions are rounded down to even values. The source frame is not
// modified; the result carries the source timestamp and one reference owned
// by the caller.
func Scale(src *frame.I420, width, height int) *frame.I420 {
	dw := width &^ 1
	dh := height &^ 1
	if dw < 2 {
		dw = 2
	}
	if dh < 2 {
		dh = 2
	}

	dst := frame.NewI420(dw, dh, src.Timestamp)

	sw, sh := src.Width, src.Height
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		srcRow := src.Y[sy*sw : (sy+1)*sw]
		dstRow := dst.Y[y*dw : (y+1)*dw]
		for x := 0; x < dw; x++ {
			dstRow[x] = srcRow[x*sw/dw]
		}
	}

	// Chroma planes scale at half resolution.
	sw2, sh2 := sw/2, sh/2
	dw2, dh2 := dw/2, dh/2
	for y := 0; y < dh2; y++ {
		sy := y * sh2 / dh2
		sUStart := sy * sw2
		dUStart := y * dw2
		for x := 0; x < dw2; x++ {
			sx := x * sw2 / dw2
			dst.U[dUStart+x] = src.U[sUStart+sx]
			dst.V[dUStart+x] = src.V[sUStart+sx]
		}
	}

	return dst
}

// FitWithin shrinks (w, h) proportionally so it fits inside (maxW, maxH),
// then rounds the result down to even values and, when align > 1, to a
// multiple of align. Zero maxima mean unconstrained. Never upscales.
func FitWithin(w, h, maxW, maxH, align int) (int, int) {
	dw, dh := w, h
	if maxW > 0 && dw > maxW {
		dh = dh * maxW / dw
		dw = maxW
	}
	if maxH > 0 && dh > maxH {
		dw = dw * maxH / dh
		dh = maxH
	}
	if align > 1 {
		dw -= dw % align
		dh -= dh % align
	}
	dw &^= 1
	dh &^= 1
	if dw < 2 {
		dw = 2
	}
	if dh < 2 {
		dh = 2
	}
	return dw, dh
}
