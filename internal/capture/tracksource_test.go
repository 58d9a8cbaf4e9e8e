package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visgrid/framecast/internal/broadcast"
	"github.com/visgrid/framecast/internal/frame"
)

type stubSource struct {
	mu       sync.Mutex
	fn       func(frame.Raw)
	detached bool
}

func (s *stubSource) Attach(fn func(frame.Raw)) (func(), error) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.detached = true
		s.fn = nil
		s.mu.Unlock()
	}, nil
}

func (s *stubSource) push(r frame.Raw) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

func (s *stubSource) isDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

func TestCreateUnknownSource(t *testing.T) {
	ts, err := Create("no-such-source", nil)
	if ts != nil {
		t.Fatal("expected nil track source for unknown identifier")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("got %v, want ErrSourceUnavailable", err)
	}
}

func TestCreateBindsSourceToSink(t *testing.T) {
	src := &stubSource{}
	RegisterSource("stub-bind", src)
	defer UnregisterSource("stub-bind")

	ts, err := Create("stub-bind", map[string]string{
		OptTargetWidth:  "32",
		OptTargetHeight: "24",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ts.Close()

	if ts.SourceID() != "stub-bind" {
		t.Fatalf("SourceID = %q, want stub-bind", ts.SourceID())
	}
	if w, h := ts.Capturer().Target(); w != 32 || h != 24 {
		t.Fatalf("target = %dx%d, want 32x24 from options", w, h)
	}

	sink := &countingSink{}
	ts.AddOrUpdateSink(sink, broadcast.Wants{})
	src.push(grayRaw(64, 48, time.Now()))

	if got := sink.count(); got != 1 {
		t.Fatalf("sink got %d frames, want 1", got)
	}
}

func TestUnregisteredSourceKeepsExistingBinding(t *testing.T) {
	src := &stubSource{}
	RegisterSource("stub-keep", src)

	ts, err := Create("stub-keep", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ts.Close()

	UnregisterSource("stub-keep")

	sink := &countingSink{}
	ts.AddOrUpdateSink(sink, broadcast.Wants{})
	src.push(grayRaw(16, 16, time.Now()))
	if got := sink.count(); got != 1 {
		t.Fatalf("sink got %d frames after unregister, want 1", got)
	}

	if _, err := Create("stub-keep", nil); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("new Create after unregister: got %v, want ErrSourceUnavailable", err)
	}
}

func TestCloseDetachesAndRemovesSinks(t *testing.T) {
	src := &stubSource{}
	RegisterSource("stub-close", src)
	defer UnregisterSource("stub-close")

	ts, err := Create("stub-close", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sink := &countingSink{}
	ts.AddOrUpdateSink(sink, broadcast.Wants{})

	ts.Close()
	ts.Close() // idempotent

	if !src.isDetached() {
		t.Fatal("Close did not detach from the frame source")
	}
	if n := ts.Capturer().SinkCount(); n != 0 {
		t.Fatalf("SinkCount after Close = %d, want 0", n)
	}

	src.push(grayRaw(16, 16, time.Now()))
	if got := sink.count(); got != 0 {
		t.Fatalf("sink got %d frames after Close, want 0", got)
	}
}
