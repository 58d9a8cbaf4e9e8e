package convert

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/visgrid/framecast/internal/frame"
)

func uniformRaw(w, h int, r, g, b byte) frame.Raw {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = 255
	}
	return frame.Raw{
		Pix:       pix,
		Width:     w,
		Height:    h,
		Stride:    w * 4,
		Format:    frame.FormatRGBA,
		Timestamp: time.Now(),
	}
}

func assertUniformPlanes(t *testing.T, f *frame.I420, y, u, v byte) {
	t.Helper()
	for i, got := range f.Y {
		if got != y {
			t.Fatalf("Y[%d] = %d, want %d", i, got, y)
		}
	}
	for i, got := range f.U {
		if got != u {
			t.Fatalf("U[%d] = %d, want %d", i, got, u)
		}
	}
	for i, got := range f.V {
		if got != v {
			t.Fatalf("V[%d] = %d, want %d", i, got, v)
		}
	}
}

func TestConvertKnownColors(t *testing.T) {
	cases := []struct {
		name    string
		r, g, b byte
		y, u, v byte
	}{
		{"white", 255, 255, 255, 235, 128, 128},
		{"black", 0, 0, 0, 16, 128, 128},
		{"red", 255, 0, 0, 82, 90, 240},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Convert(uniformRaw(8, 8, tc.r, tc.g, tc.b), 0, 0)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			defer f.Release()
			assertUniformPlanes(t, f, tc.y, tc.u, tc.v)
		})
	}
}

func TestConvertBGRAChannelOrder(t *testing.T) {
	raw := uniformRaw(8, 8, 255, 0, 0) // B=255 when read as BGRA
	raw.Format = frame.FormatBGRA
	f, err := Convert(raw, 0, 0)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer f.Release()

	// Pure blue: Y = (25*255+128)>>8 + 16 = 41.
	assertUniformPlanes(t, f, 41, 240, 110)
}

func TestConvertRoundsOddDimensionsDown(t *testing.T) {
	f, err := Convert(uniformRaw(7, 5, 0, 0, 0), 0, 0)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer f.Release()
	if f.Width != 6 || f.Height != 4 {
		t.Fatalf("output = %dx%d, want 6x4", f.Width, f.Height)
	}
}

func TestConvertDownscales(t *testing.T) {
	f, err := Convert(uniformRaw(64, 64, 200, 100, 50), 16, 16)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer f.Release()
	if f.Width != 16 || f.Height != 16 {
		t.Fatalf("output = %dx%d, want 16x16", f.Width, f.Height)
	}
	if f.Timestamp.IsZero() {
		t.Fatal("timestamp not carried through")
	}
}

func TestConvertCenterCropsToTargetAspect(t *testing.T) {
	// 8x4 source, left half red, right half blue. A 4x4 target crops the
	// center 4 columns: two red, two blue.
	raw := uniformRaw(8, 4, 255, 0, 0)
	for y := 0; y < 4; y++ {
		for x := 4; x < 8; x++ {
			o := (y*8 + x) * 4
			raw.Pix[o] = 0
			raw.Pix[o+2] = 255
		}
	}

	f, err := Convert(raw, 4, 4)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer f.Release()

	const redY, blueY = 82, 41
	for y := 0; y < 4; y++ {
		row := f.Y[y*4 : y*4+4]
		if row[0] != redY || row[1] != redY {
			t.Fatalf("row %d left = %v, want red luma %d", y, row[:2], redY)
		}
		if row[2] != blueY || row[3] != blueY {
			t.Fatalf("row %d right = %v, want blue luma %d", y, row[2:], blueY)
		}
	}
}

func TestConvertCroppedRegion(t *testing.T) {
	// Mark a 4x4 white block at (4,4) inside a black frame and crop to it.
	raw := uniformRaw(16, 16, 0, 0, 0)
	for y := 4; y < 8; y++ {
		for x := 4; x < 8; x++ {
			o := (y*16 + x) * 4
			raw.Pix[o], raw.Pix[o+1], raw.Pix[o+2] = 255, 255, 255
		}
	}

	f, err := ConvertCropped(raw, image.Rect(4, 4, 8, 8), 0, 0)
	if err != nil {
		t.Fatalf("ConvertCropped: %v", err)
	}
	defer f.Release()
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("output = %dx%d, want 4x4", f.Width, f.Height)
	}
	assertUniformPlanes(t, f, 235, 128, 128)
}

func TestConvertCropOutsideBounds(t *testing.T) {
	_, err := ConvertCropped(uniformRaw(8, 8, 0, 0, 0), image.Rect(100, 100, 120, 120), 0, 0)
	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want ConversionError", err)
	}
}

func TestConvertBadGeometryDoesNotPoisonNextFrame(t *testing.T) {
	bad := uniformRaw(8, 8, 0, 0, 0)
	bad.Stride = 8*4 - 1
	if _, err := Convert(bad, 0, 0); err == nil {
		t.Fatal("undersized stride accepted")
	} else {
		var cerr *ConversionError
		if !errors.As(err, &cerr) {
			t.Fatalf("got %T, want ConversionError", err)
		}
	}

	f, err := Convert(uniformRaw(8, 8, 0, 0, 0), 0, 0)
	if err != nil {
		t.Fatalf("conversion after bad frame: %v", err)
	}
	f.Release()
}

func TestConvertUnknownFormat(t *testing.T) {
	raw := uniformRaw(8, 8, 0, 0, 0)
	raw.Format = "nv12"
	_, err := Convert(raw, 0, 0)
	if !errors.Is(err, frame.ErrUnknownFormat) {
		t.Fatalf("got %v, want wrapped ErrUnknownFormat", err)
	}
}

func TestScaleUniform(t *testing.T) {
	src, err := Convert(uniformRaw(64, 48, 255, 255, 255), 0, 0)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer src.Release()

	dst := Scale(src, 32, 24)
	defer dst.Release()
	if dst.Width != 32 || dst.Height != 24 {
		t.Fatalf("scaled = %dx%d, want 32x24", dst.Width, dst.Height)
	}
	assertUniformPlanes(t, dst, 235, 128, 128)
	if !dst.Timestamp.Equal(src.Timestamp) {
		t.Fatal("timestamp not carried through scale")
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name                 string
		w, h, maxW, maxH, al int
		wantW, wantH         int
	}{
		{"unconstrained", 1920, 1080, 0, 0, 0, 1920, 1080},
		{"fits already", 320, 240, 640, 480, 0, 320, 240},
		{"width bound", 1920, 1080, 640, 480, 0, 640, 360},
		{"both bounds", 1920, 1080, 640, 240, 0, 426, 240},
		{"aligned", 1920, 1080, 640, 480, 16, 640, 352},
		{"tiny floor", 10, 10, 1, 1, 0, 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := FitWithin(tc.w, tc.h, tc.maxW, tc.maxH, tc.al)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Fatalf("FitWithin = %dx%d, want %dx%d", gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}
