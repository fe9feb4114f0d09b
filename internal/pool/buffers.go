// Package pool reduces per-query allocation pressure by recycling the
// fixed-size datagram buffers the transport and frontend layers read
// into. Since this resolver is UDP-only with no EDNS(0), every buffer
// is the classic 512-octet DNS/UDP ceiling - there is no medium/large
// tier to pool separately.
package pool

import "sync"

// DatagramBufferSize is the only buffer size this resolver ever reads
// into (§6).
const DatagramBufferSize = 512

var datagramPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DatagramBufferSize)
		return &buf
	},
}

// GetDatagramBuffer returns a length-512 buffer ready to receive one
// UDP datagram.
func GetDatagramBuffer() []byte {
	bufPtr := datagramPool.Get().(*[]byte)
	return (*bufPtr)[:DatagramBufferSize]
}

// PutDatagramBuffer returns buf to the pool. Buffers with the wrong
// capacity (never produced by this package, but defensive against
// misuse) are dropped rather than pooled.
func PutDatagramBuffer(buf []byte) {
	if cap(buf) != DatagramBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	datagramPool.Put(&buf)
}
