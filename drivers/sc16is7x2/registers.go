// Package sc16is7x2 provides constants for register addresses and bitfields used
// in the operation of the SC16IS752/SC16IS762 dual UART.
package sc16is7x2

// Register is a 4-bit register code (datasheet table 10). Several codes are
// shared: the meaning depends on the access direction and on LCR[7] (DLAB).
type Register uint8

const (
	// General register set
	RHR   Register = 0x00 // R
	THR   Register = 0x00 // W
	IER   Register = 0x01 // R/W
	IIR   Register = 0x02 // R
	FCR   Register = 0x02 // W
	LCR   Register = 0x03 // R/W
	MCR   Register = 0x04 // R/W
	LSR   Register = 0x05 // R
	MSR   Register = 0x06 // R
	SPR   Register = 0x07 // R/W scratchpad
	TXLVL Register = 0x08 // R, free space in TX FIFO
	RXLVL Register = 0x09 // R, bytes held in RX FIFO

	// Device-level GPIO and control, shared by both channels. A write to
	// IOControl through either channel address affects the whole part.
	IODir     Register = 0x0A
	IOState   Register = 0x0B
	IOIntEna  Register = 0x0C
	IOControl Register = 0x0E

	// Per-channel extra features control (RS-485 direction on RTS)
	EFCR Register = 0x0F

	// Special register set, only while LCR[7] = 1
	DLL Register = 0x00
	DLH Register = 0x01

	// Enhanced register set, only while LCR = 0xBF
	EFR Register = 0x02
)

// ChannelID selects UART A or B.
type ChannelID uint8

const (
	ChannelA ChannelID = 0
	ChannelB ChannelID = 1
)

func (c ChannelID) String() string {
	if c == ChannelB {
		return "B"
	}
	return "A"
}

// SubAddress encodes a register and channel into the byte sent on the bus:
//
//	bit 7    R/W (SPI only, set by the transport)
//	bits 6:3 register code
//	bits 2:1 channel
//	bit 0    unused
func SubAddress(reg Register, ch ChannelID) byte {
	return byte(reg&0x0F)<<3 | byte(ch&0x03)<<1
}

// FIFODepth is the size of each RX and TX FIFO.
const FIFODepth = 64

const (
	// --- LCR ---
	lcrWordLen5     = 0x00
	lcrWordLen6     = 0x01
	lcrWordLen7     = 0x02
	lcrWordLen8     = 0x03
	lcrStopBits2    = 0x04
	lcrParityEnable = 0x08
	lcrParityEven   = 0x10
	lcrParityForce  = 0x20 // mark/space; never set
	lcrFormatMask   = 0x3F
	lcrDivisorLatch = 0x80

	// --- MCR ---
	mcrClockDiv4 = 0x80 // prescaler /4 when set

	// --- FCR (write-only) ---
	fcrFIFOEnable = 0x01
	fcrRxReset    = 0x02 // self-clearing
	fcrTxReset    = 0x04 // self-clearing

	// --- IOControl ---
	ioctlSoftReset = 0x08

	// --- EFCR ---
	efcrRTSControl = 0x10 // auto RS-485 direction on RTS
	efcrRTSInvert  = 0x20 // invert RTS (DE) polarity

	// Scratchpad probe pattern.
	sprProbe = 0x5A
)
