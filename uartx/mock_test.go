package uartx

import "sync"

// mockBus is an in-memory Peripheral. The transmit register is always ready
// unless busy is set; bytes pushed with arrive sit in the receive register
// until read.
type mockBus struct {
	mu sync.Mutex

	clock     Clock
	txEnabled bool
	rxEnabled bool
	txie      bool
	rxie      bool
	busy      bool

	written []byte
	rxReg   []byte
	reads   int

	enableTx  int
	disableTx int
}

func (m *mockBus) SetLineSpeed(clock Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func (m *mockBus) Enable(tx, rx bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txEnabled, m.rxEnabled = tx, rx
}

func (m *mockBus) TransmitRegisterEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busy
}

func (m *mockBus) ReceiveDataReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rxReg) > 0
}

func (m *mockBus) WriteTransmitRegister(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, b)
}

func (m *mockBus) ReadReceiveRegister() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if len(m.rxReg) == 0 {
		return 0
	}
	b := m.rxReg[0]
	m.rxReg = m.rxReg[1:]
	return b
}

func (m *mockBus) EnableReceiveInterrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxie = true
}

func (m *mockBus) EnableTransmitInterrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txie = true
	m.enableTx++
}

func (m *mockBus) DisableTransmitInterrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txie = false
	m.disableTx++
}

func (m *mockBus) arrive(p ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxReg = append(m.rxReg, p...)
}

func (m *mockBus) txArmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txie
}

func (m *mockBus) setBusy(busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = busy
}

func (m *mockBus) output() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// newTestUART returns an initialized UART with the given ring storage sizes.
func newTestUART(txSize, rxSize int) (*UART, *mockBus) {
	bus := &mockBus{}
	u := NewUART(bus, make([]byte, txSize), make([]byte, rxSize))
	u.Initialize(Clock16MHz{})
	return u, bus
}

// fireRx models one receive interrupt per byte.
func fireRx(u *UART, bus *mockBus, p ...byte) {
	for _, b := range p {
		bus.arrive(b)
		u.HandleReceiveInterrupt()
	}
}
