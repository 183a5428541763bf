// Package bufpool provides the shared, process-wide buffer pool that backs
// HeaderParser: fixed-size 4 KiB and 16 KiB byte slices drawn from a
// sync.Pool and returned once a session finishes with them. Header blocks
// are bounded, so these buffers never grow past their tier and never spill
// to disk.
package bufpool

import (
	"sync"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
)

var primaryPool = sync.Pool{
	New: func() any {
		buf := make([]byte, constants.PrimaryHeaderBufferSize)
		return &buf
	},
}

var secondaryPool = sync.Pool{
	New: func() any {
		buf := make([]byte, constants.SecondaryHeaderBufferSize)
		return &buf
	},
}

// GetPrimary returns a PrimaryHeaderBufferSize-capacity slice drawn from the
// pool, or a freshly allocated one if the pool is empty.
func GetPrimary() []byte {
	p := primaryPool.Get().(*[]byte)
	return *p
}

// PutPrimary returns a primary buffer to the pool. The buffer must have been
// obtained from GetPrimary and must be at its original capacity.
func PutPrimary(buf []byte) {
	if cap(buf) != constants.PrimaryHeaderBufferSize {
		return
	}
	buf = buf[:constants.PrimaryHeaderBufferSize]
	primaryPool.Put(&buf)
}

// GetSecondary returns a SecondaryHeaderBufferSize-capacity slice drawn from
// the pool.
func GetSecondary() []byte {
	p := secondaryPool.Get().(*[]byte)
	return *p
}

// PutSecondary returns a secondary buffer to the pool.
func PutSecondary(buf []byte) {
	if cap(buf) != constants.SecondaryHeaderBufferSize {
		return
	}
	buf = buf[:constants.SecondaryHeaderBufferSize]
	secondaryPool.Put(&buf)
}
