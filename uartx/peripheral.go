// uartx/peripheral.go

package uartx

// Peripheral is the hardware boundary the driver consumes. Board files
// implement it on real registers; tests and the host simulator implement it in
// memory.
//
// EnableTransmitInterrupt is called from the foreground and
// DisableTransmitInterrupt from the transmit handler, so both must be single
// atomic bit operations on the target or run with interrupts masked.
type Peripheral interface {
	// SetLineSpeed programs the baud-rate divisor for clock.
	SetLineSpeed(clock Clock)
	// Enable switches on transmitter and/or receiver logic.
	Enable(tx, rx bool)

	// TransmitRegisterEmpty reports that the transmit data register can take a byte.
	TransmitRegisterEmpty() bool
	// ReceiveDataReady reports an unread byte in the receive data register.
	ReceiveDataReady() bool

	WriteTransmitRegister(b byte)
	ReadReceiveRegister() byte

	EnableReceiveInterrupt()
	EnableTransmitInterrupt()
	DisableTransmitInterrupt()
}
