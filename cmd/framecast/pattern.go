package main

import (
	"sync"
	"time"

	"github.com/visgrid/framecast/internal/frame"
)

// patternSource renders a moving color gradient at a fixed rate. It stands in
// for a real platform capture source in demos and soak tests.
type patternSource struct {
	width    int
	height   int
	interval time.Duration
}

func newPatternSource(width, height, fps int) *patternSource {
	if fps < 1 {
		fps = 30
	}
	return &patternSource{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
	}
}

func (s *patternSource) Attach(fn func(frame.Raw)) (func(), error) {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// The callback converts synchronously, so one buffer can be reused
		// across ticks.
		pix := make([]byte, s.width*s.height*4)
		var n int
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.render(pix, n)
				n++
				fn(frame.Raw{
					Pix:       pix,
					Width:     s.width,
					Height:    s.height,
					Stride:    s.width * 4,
					Format:    frame.FormatRGBA,
					Timestamp: now,
				})
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }, nil
}

func (s *patternSource) render(pix []byte, n int) {
	shift := n * 3
	for y := 0; y < s.height; y++ {
		row := y * s.width * 4
		for x := 0; x < s.width; x++ {
			o := row + x*4
			pix[o] = byte(x * 255 / s.width)
			pix[o+1] = byte(y * 255 / s.height)
			pix[o+2] = byte(x + y + shift)
			pix[o+3] = 255
		}
	}
}
