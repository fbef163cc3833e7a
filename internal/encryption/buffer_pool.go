package encryption

import (
	"sync"

	"github.com/awnumar/memguard"
)

// ChunkSize is the number of payload bytes read, transformed and written per step.
const ChunkSize = 1 << 20

// bufferPool provides reusable chunk buffers for file I/O.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ChunkSize)

		return &buf
	},
}

// getBuffer returns a buffer of exactly size bytes and a function that wipes and releases it.
func getBuffer(size int) ([]byte, func()) {
	if size != ChunkSize {
		buf := make([]byte, size)

		return buf, func() { memguard.WipeBytes(buf) }
	}

	buf, _ := bufferPool.Get().(*[]byte) //nolint:errcheck // type is guaranteed by New

	return *buf, func() {
		memguard.WipeBytes(*buf)
		bufferPool.Put(buf)
	}
}
