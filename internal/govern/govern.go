// Package govern adapts the capture frame rate to host CPU load. Frame
// conversion runs on the capture thread, so a saturated host turns into
// capture latency for every sink; lowering the frame rate under sustained
// load keeps per-frame latency bounded.
package govern

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/visgrid/framecast/internal/logging"
)

var log = logging.L("govern")

// SampleFunc reports current CPU utilization in [0, 1].
type SampleFunc func() (float64, error)

// systemCPU samples total CPU utilization since the previous call.
func systemCPU() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, errors.New("no cpu sample")
	}
	return percents[0] / 100.0, nil
}

type Config struct {
	MinFPS int
	MaxFPS int
	// HighWatermark is the smoothed load above which the frame rate is
	// reduced (default 0.85); LowWatermark is the load below which it may
	// recover (default 0.60).
	HighWatermark float64
	LowWatermark  float64
	Cooldown      time.Duration // min time between adjustments (default 2s)
	Interval      time.Duration // sampling period (default 1s)
	Sample        SampleFunc    // nil = system CPU via gopsutil
	OnFPSChange   func(int)
}

// Governor applies AIMD to the frame rate: multiplicative decrease on
// sustained high load, additive recovery after consecutive clean samples.
// EWMA smoothing prevents reacting to single transient spikes.
type Governor struct {
	mu            sync.Mutex
	minFPS        int
	maxFPS        int
	highWatermark float64
	lowWatermark  float64
	cooldown      time.Duration
	interval      time.Duration
	sample        SampleFunc
	onFPSChange   func(int)

	currentFPS int
	lastAdjust time.Time

	// Alpha = 0.3 gives ~70% weight to history, 30% to the new sample.
	smoothedLoad float64
	samplesCount int
	stableCount  int
}

const ewmaAlpha = 0.3

func New(cfg Config) (*Governor, error) {
	if cfg.MinFPS <= 0 || cfg.MaxFPS <= 0 || cfg.MinFPS > cfg.MaxFPS {
		return nil, errors.New("invalid fps bounds")
	}
	if cfg.HighWatermark == 0 {
		cfg.HighWatermark = 0.85
	}
	if cfg.LowWatermark == 0 {
		cfg.LowWatermark = 0.60
	}
	if cfg.LowWatermark >= cfg.HighWatermark {
		return nil, errors.New("low watermark must be below high watermark")
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Sample == nil {
		cfg.Sample = systemCPU
	}

	return &Governor{
		minFPS:        cfg.MinFPS,
		maxFPS:        cfg.MaxFPS,
		highWatermark: cfg.HighWatermark,
		lowWatermark:  cfg.LowWatermark,
		cooldown:      cfg.Cooldown,
		interval:      cfg.Interval,
		sample:        cfg.Sample,
		onFPSChange:   cfg.OnFPSChange,
		currentFPS:    cfg.MaxFPS,
	}, nil
}

// Run samples CPU load until the context is cancelled.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load, err := g.sample()
			if err != nil {
				log.Warn("cpu sample failed", "error", err)
				continue
			}
			g.Update(load)
		}
	}
}

// Update feeds one load sample and adjusts the frame rate if warranted.
func (g *Governor) Update(load float64) {
	if load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}

	g.mu.Lock()

	now := time.Now()
	if !g.lastAdjust.IsZero() && now.Sub(g.lastAdjust) < g.cooldown {
		// Still update the EWMA on cooldown so we don't miss data.
		g.updateEWMA(load)
		g.mu.Unlock()
		return
	}

	g.updateEWMA(load)

	// Need a few samples before making decisions.
	if g.samplesCount < 3 {
		g.mu.Unlock()
		return
	}

	smoothed := g.smoothedLoad
	degrade := smoothed >= g.highWatermark
	upgrade := smoothed <= g.lowWatermark

	if degrade {
		g.stableCount = 0
	} else if upgrade {
		g.stableCount++
	} else if g.stableCount > 0 {
		// Middle zone: decay slowly rather than resetting.
		g.stableCount--
	}

	// Require 2 consecutive clean samples before recovering to avoid
	// oscillation between degrade and upgrade.
	const stableRequired = 2

	action := "hold"
	newFPS := g.currentFPS
	if degrade {
		action = "degrade"
		newFPS = g.currentFPS * 7 / 10
	} else if g.stableCount >= stableRequired && g.currentFPS < g.maxFPS {
		action = "upgrade"
		newFPS = g.currentFPS + 5
		g.stableCount = 0
	}
	newFPS = clampInt(newFPS, g.minFPS, g.maxFPS)

	if newFPS == g.currentFPS {
		g.mu.Unlock()
		return
	}

	prevFPS := g.currentFPS
	g.currentFPS = newFPS
	g.lastAdjust = now
	callback := g.onFPSChange
	g.mu.Unlock()

	log.Info("frame rate adjustment",
		"action", action,
		"fps", newFPS,
		"prevFPS", prevFPS,
		"smoothedLoad", smoothed,
	)

	if callback != nil {
		callback(newFPS)
	}
}

func (g *Governor) updateEWMA(load float64) {
	g.samplesCount++
	if g.samplesCount == 1 {
		g.smoothedLoad = load
		return
	}
	g.smoothedLoad = ewmaAlpha*load + (1-ewmaAlpha)*g.smoothedLoad
}

// FPS reports the current governed frame rate.
func (g *Governor) FPS() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentFPS
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
