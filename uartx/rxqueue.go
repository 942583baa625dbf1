// uartx/rxqueue.go

package uartx

import "sync/atomic"

// RxBufferSize is the receive storage size of the board UARTs. Must be a
// power of two.
const RxBufferSize = 8

// RxQueue is the receive ring. head is written only by the receive handler
// (or the polling fallback), tail only by the foreground consumer. Indices wrap
// with a mask, so the storage length must be a power of two.
type RxQueue struct {
	buf  []byte
	mask uint32
	head atomic.Uint32 // last slot written
	tail atomic.Uint32 // last slot consumed
}

// NewRxQueue wraps buf as receive storage. It panics unless len(buf) is a
// power of two of at least 2.
func NewRxQueue(buf []byte) *RxQueue {
	n := len(buf)
	if n < 2 || n&(n-1) != 0 {
		panic("uartx: rx storage length must be a power of two")
	}
	return &RxQueue{buf: buf, mask: uint32(n - 1)}
}

// Put stores a byte. When the queue is full the byte is dropped, the indices
// are left alone and Put returns false.
func (q *RxQueue) Put(b byte) bool {
	h := (q.head.Load() + 1) & q.mask
	if h == q.tail.Load() {
		return false
	}
	q.buf[h] = b
	q.head.Store(h)
	return true
}

// Get removes the oldest byte. It returns (0, false) when the queue is empty.
func (q *RxQueue) Get() (byte, bool) {
	t := q.tail.Load()
	if q.head.Load() == t {
		return 0, false
	}
	t = (t + 1) & q.mask
	b := q.buf[t]
	q.tail.Store(t)
	return b, true
}

// Empty reports head == tail.
func (q *RxQueue) Empty() bool {
	return q.head.Load() == q.tail.Load()
}

// Used returns (head - tail) mod N.
func (q *RxQueue) Used() int {
	return int((q.head.Load() - q.tail.Load()) & q.mask)
}

// Size returns the usable capacity, one less than the storage length.
func (q *RxQueue) Size() int { return len(q.buf) - 1 }

// Clear resets both indices. Only safe while the receive handler is idle.
func (q *RxQueue) Clear() {
	q.head.Store(0)
	q.tail.Store(0)
}
