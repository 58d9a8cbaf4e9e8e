// Package wspreview serves a low-fidelity JPEG preview of the frame stream
// over a WebSocket. Each connection registers as an independent sink with
// its own resolution cap and frame rate taken from the request query, so a
// dashboard thumbnail never affects the primary track.
package wspreview

import (
	"image/jpeg"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/visgrid/framecast/internal/broadcast"
	"github.com/visgrid/framecast/internal/frame"
	"github.com/visgrid/framecast/internal/logging"
)

var log = logging.L("wspreview")

// SinkRegistry is the subscription surface a preview connection binds to.
// *capture.TrackSource satisfies it.
type SinkRegistry interface {
	AddOrUpdateSink(sink broadcast.Sink, wants broadcast.Wants)
	RemoveSink(sink broadcast.Sink)
}

const (
	defaultMaxWidth  = 640
	defaultMaxHeight = 480
	defaultFPS       = 5
	defaultQuality   = 60

	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// Preview is same-origin behind the operator's own reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades requests to WebSocket preview streams.
type Handler struct {
	registry SinkRegistry
}

func NewHandler(registry SinkRegistry) *Handler {
	return &Handler{registry: registry}
}

// ServeHTTP upgrades the connection and streams JPEG frames until the peer
// disconnects. Query parameters: w, h (resolution cap), fps (pacing),
// q (JPEG quality 1-100).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wants, quality := parseQuery(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sink := newPreviewSink()
	h.registry.AddOrUpdateSink(sink, wants)
	log.Info("preview client connected",
		"client", sink.id,
		"remote", r.RemoteAddr,
		"maxWidth", wants.MaxWidth,
		"maxHeight", wants.MaxHeight,
	)

	done := make(chan struct{})
	go readUntilClose(conn, done)

	h.writeLoop(conn, sink, quality, done)

	h.registry.RemoveSink(sink)
	sink.close()
	conn.Close()
	log.Info("preview client disconnected", "client", sink.id)
}

func (h *Handler) writeLoop(conn *websocket.Conn, sink *previewSink, quality int, done <-chan struct{}) {
	opts := &jpeg.Options{Quality: quality}
	for {
		select {
		case <-done:
			return
		case f, ok := <-sink.frames:
			if !ok {
				return
			}
			buf := getBuffer()
			err := jpeg.Encode(buf, f.YCbCr(), opts)
			f.Release()
			if err != nil {
				putBuffer(buf)
				log.Warn("jpeg encode failed", "client", sink.id, "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
			putBuffer(buf)
			if err != nil {
				log.Debug("preview write failed", "client", sink.id, "error", err)
				return
			}
		}
	}
}

// readUntilClose drains inbound messages so control frames are processed and
// signals when the peer goes away.
func readUntilClose(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func parseQuery(r *http.Request) (broadcast.Wants, int) {
	q := r.URL.Query()
	wants := broadcast.Wants{
		MaxWidth:  queryInt(q.Get("w"), defaultMaxWidth),
		MaxHeight: queryInt(q.Get("h"), defaultMaxHeight),
	}
	fps := queryInt(q.Get("fps"), defaultFPS)
	if fps > 0 {
		wants.MinFrameInterval = time.Second / time.Duration(fps)
	}
	quality := queryInt(q.Get("q"), defaultQuality)
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}
	return wants, quality
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// previewSink buffers at most one frame: a slow connection sees the latest
// frame, never a growing backlog.
type previewSink struct {
	id     string
	frames chan *frame.I420
}

func newPreviewSink() *previewSink {
	return &previewSink{
		id:     uuid.NewString(),
		frames: make(chan *frame.I420, 1),
	}
}

func (s *previewSink) OnFrame(f *frame.I420) {
	f.Retain()
	for {
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case stale := <-s.frames:
			stale.Release()
		default:
		}
	}
}

// close releases any frame still queued. The broadcaster must have removed
// the sink first so no concurrent OnFrame is running.
func (s *previewSink) close() {
	select {
	case f := <-s.frames:
		f.Release()
	default:
	}
}
