package capture

import (
	"sync"

	"github.com/visgrid/framecast/internal/frame"
)

// FrameSource is the external producer of raw frames. Implementations push
// frames from their own goroutine; the pipeline never polls.
type FrameSource interface {
	// Attach starts delivering frames to fn. The returned detach function
	// stops delivery and must be safe to call more than once.
	Attach(fn func(frame.Raw)) (detach func(), err error)
}

var (
	sourcesMu sync.RWMutex
	sources   = make(map[string]FrameSource)
)

// RegisterSource makes a frame source resolvable by Create under the given
// identifier. Registering the same identifier again replaces the previous
// source for future Create calls; existing track sources keep their binding.
func RegisterSource(id string, src FrameSource) {
	sourcesMu.Lock()
	sources[id] = src
	sourcesMu.Unlock()
}

// UnregisterSource removes a source identifier from the registry.
func UnregisterSource(id string) {
	sourcesMu.Lock()
	delete(sources, id)
	sourcesMu.Unlock()
}

func lookupSource(id string) FrameSource {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	return sources[id]
}
