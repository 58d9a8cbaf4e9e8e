package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visgrid/framecast/internal/broadcast"
	"github.com/visgrid/framecast/internal/capture"
	"github.com/visgrid/framecast/internal/config"
	"github.com/visgrid/framecast/internal/govern"
	"github.com/visgrid/framecast/internal/health"
	"github.com/visgrid/framecast/internal/logging"
	"github.com/visgrid/framecast/internal/wspreview"
)

const metricsInterval = 30 * time.Second

func runStream() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if result := cfg.Validate(); result.HasFatals() {
		for _, verr := range result.Fatals {
			fmt.Fprintf(os.Stderr, "Invalid config: %v\n", verr)
		}
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("main")

	// The built-in source renders a moving test pattern; real deployments
	// register a platform capture source here instead.
	capture.RegisterSource(cfg.Source, newPatternSource(1280, 720, cfg.MaxFPS))

	opts := map[string]string{
		capture.OptTargetWidth:  strconv.Itoa(cfg.TargetWidth),
		capture.OptTargetHeight: strconv.Itoa(cfg.TargetHeight),
		capture.OptMaxFPS:       strconv.Itoa(cfg.MaxFPS),
	}
	track, err := capture.CreateWithDispatch(cfg.Source, opts, broadcast.Options{
		AsyncDispatch: cfg.AsyncDispatch,
		QueueSize:     cfg.QueueSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create track source: %v\n", err)
		os.Exit(1)
	}
	defer track.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := health.NewMonitor()
	monitor.Update("capture", health.Healthy, "")

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MinFPS > 0 {
		gov, gerr := govern.New(govern.Config{
			MinFPS:      cfg.MinFPS,
			MaxFPS:      cfg.MaxFPS,
			OnFPSChange: track.SetMaxFPS,
		})
		if gerr != nil {
			fmt.Fprintf(os.Stderr, "Invalid governor config: %v\n", gerr)
			os.Exit(1)
		}
		g.Go(func() error {
			gov.Run(ctx)
			return nil
		})
	}

	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/preview", wspreview.NewHandler(track))
		mux.Handle("/healthz", monitor.Handler())
		srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

		g.Go(func() error {
			log.Info("preview server listening", "addr", cfg.ListenAddr)
			if serr := srv.ListenAndServe(); !errors.Is(serr, http.ErrServerClosed) {
				return serr
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		metricsLogger(ctx, track, monitor)
		return nil
	})

	log.Info("framecast started",
		"source", cfg.Source,
		"targetWidth", cfg.TargetWidth,
		"targetHeight", cfg.TargetHeight,
		"maxFps", cfg.MaxFPS,
	)

	if err := g.Wait(); err != nil {
		log.Error("pipeline stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// metricsLogger periodically reports pipeline counters and refreshes the
// capture health check from frame throughput.
func metricsLogger(ctx context.Context, track *capture.TrackSource, monitor *health.Monitor) {
	log := logging.L("metrics")
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	var lastConverted uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm := track.Capturer().Metrics()
			if cm.FramesConverted > lastConverted {
				monitor.Update("capture", health.Healthy, "")
			} else {
				monitor.Update("capture", health.Degraded, "no frames converted in last interval")
			}
			lastConverted = cm.FramesConverted
			bc := track.Capturer().BroadcastMetrics()
			log.Info("pipeline metrics",
				"framesReceived", cm.FramesReceived,
				"framesConverted", cm.FramesConverted,
				"framesSkipped", cm.FramesSkipped,
				"framesDropped", cm.FramesDropped,
				"convertMs", cm.ConvertMs,
				"delivered", bc.FramesDelivered,
				"sinkSkipped", bc.FramesSkipped,
				"sinkDropped", bc.FramesDropped,
				"sinkFailures", bc.SinkFailures,
				"sinks", track.Capturer().SinkCount(),
			)
		}
	}
}
