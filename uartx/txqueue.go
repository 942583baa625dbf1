// uartx/txqueue.go

package uartx

import "sync/atomic"

// TxBufferSize is the transmit storage size of the board UARTs.
const TxBufferSize = 128

// TxQueue is the transmit ring. head is written only by the foreground
// producer, tail only by the transmit handler (or the polling fallback).
// Indices wrap by compare-and-reset, so any storage length of at least two
// works; one slot is sacrificed to tell empty from full.
type TxQueue struct {
	buf  []byte
	head atomic.Uint32 // last slot written
	tail atomic.Uint32 // last slot consumed
}

// NewTxQueue wraps buf as transmit storage. buf is not copied and must not be
// used by anything else.
func NewTxQueue(buf []byte) *TxQueue {
	if len(buf) < 2 {
		panic("uartx: tx storage must hold at least 2 bytes")
	}
	return &TxQueue{buf: buf}
}

func (q *TxQueue) next(i uint32) uint32 {
	i++
	if i >= uint32(len(q.buf)) {
		i = 0
	}
	return i
}

// Put stores a byte. It returns false and leaves the indices untouched when the
// queue already holds Size bytes.
func (q *TxQueue) Put(b byte) bool {
	h := q.next(q.head.Load())
	if h == q.tail.Load() {
		return false
	}
	q.buf[h] = b    // 1) write data
	q.head.Store(h) // 2) publish
	return true
}

// Get removes the oldest byte. It returns (0, false) when the queue is empty.
func (q *TxQueue) Get() (byte, bool) {
	t := q.tail.Load()
	if q.head.Load() == t {
		return 0, false
	}
	t = q.next(t)
	b := q.buf[t]   // 1) read element
	q.tail.Store(t) // 2) publish consumption
	return b, true
}

// Empty reports head == tail.
func (q *TxQueue) Empty() bool {
	return q.head.Load() == q.tail.Load()
}

// Used returns the number of pending bytes.
func (q *TxQueue) Used() int {
	h, t := int(q.head.Load()), int(q.tail.Load())
	if h >= t {
		return h - t
	}
	return len(q.buf) - t + h
}

// Size returns the usable capacity, one less than the storage length.
func (q *TxQueue) Size() int { return len(q.buf) - 1 }

// Free returns the number of bytes Put would still accept.
func (q *TxQueue) Free() int { return q.Size() - q.Used() }

// Clear resets both indices. Only safe while the transmit handler is idle.
func (q *TxQueue) Clear() {
	q.head.Store(0)
	q.tail.Store(0)
}
