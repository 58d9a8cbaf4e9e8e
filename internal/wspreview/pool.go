package wspreview

import (
	"bytes"
	"sync"
)

// Encode buffers are pooled; JPEG output for preview resolutions is a few
// tens of KB and churns once per delivered frame.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

const maxPooledBuffer = 1 << 20

func getBuffer() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufPool.Put(buf)
}
