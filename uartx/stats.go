// uartx/stats.go

package uartx

import "sync/atomic"

// Stats holds counters since the last reset. Drops stay silent on the data
// path; these exist only for diagnostics.
type Stats struct {
	// Transmit
	TxBytes      uint32 // bytes written to the transmit register
	TxOverflows  uint32 // Transmit calls rejected because the queue was full
	TxInterrupts uint32 // transmit handler entries
	TxDisarms    uint32 // empty-queue handler passes that disarmed the interrupt

	// Receive
	RxBytes      uint32 // bytes stored in the receive queue
	RxOverflows  uint32 // bytes read from hardware and dropped (queue full)
	RxInterrupts uint32 // receive handler entries
}

type counters struct {
	txBytes      atomic.Uint32
	txOverflows  atomic.Uint32
	txInterrupts atomic.Uint32
	txDisarms    atomic.Uint32

	rxBytes      atomic.Uint32
	rxOverflows  atomic.Uint32
	rxInterrupts atomic.Uint32
}

// Stats returns a snapshot of the counters.
func (u *UART) Stats() Stats {
	return Stats{
		TxBytes:      u.stats.txBytes.Load(),
		TxOverflows:  u.stats.txOverflows.Load(),
		TxInterrupts: u.stats.txInterrupts.Load(),
		TxDisarms:    u.stats.txDisarms.Load(),

		RxBytes:      u.stats.rxBytes.Load(),
		RxOverflows:  u.stats.rxOverflows.Load(),
		RxInterrupts: u.stats.rxInterrupts.Load(),
	}
}

// ResetStats zeroes every counter.
func (u *UART) ResetStats() {
	u.stats.txBytes.Store(0)
	u.stats.txOverflows.Store(0)
	u.stats.txInterrupts.Store(0)
	u.stats.txDisarms.Store(0)
	u.stats.rxBytes.Store(0)
	u.stats.rxOverflows.Store(0)
	u.stats.rxInterrupts.Store(0)
}
