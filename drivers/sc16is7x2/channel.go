package sc16is7x2

import (
	"uartbridge-go/x/mathx"
)

const (
	DefaultBaudRate       = 9600
	DefaultDataBits       = 8
	DefaultReadBufferSize = 64
)

// PortConfig carries the line settings of a channel. Zero fields take the
// defaults listed on CreateSerialPort.
type PortConfig struct {
	BaudRate uint32
	DataBits uint8
	Parity   Parity
	StopBits StopBits

	// ReadBufferSize is kept for the streaming layer; it does not affect
	// register programming.
	ReadBufferSize int

	// InvertDE drives RTS (DE) high while receiving. RS-485 ports only.
	InvertDE bool
}

func (c PortConfig) withDefaults() PortConfig {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	if c.StopBits == 0 {
		c.StopBits = StopBitsOne
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	return c
}

// Channel is an exclusive handle on one UART of the bridge.
//
// All methods serialise on the channel lock (or the shared bus lock), so a
// Channel may be used from several goroutines.
type Channel struct {
	dev  *Device
	id   ChannelID
	name string

	// Guarded by dev.lockFor(id).
	cfg         PortConfig
	achieved    uint32
	rs485       bool
	fifoEnabled bool
	fcr         byte // shadow of the write-only FCR
	closed      bool
}

func (c *Channel) ID() ChannelID { return c.id }
func (c *Channel) Name() string  { return c.name }

func (c *Channel) lock() func() {
	l := c.dev.lockFor(c.id)
	l.Lock()
	return l.Unlock
}

// Config returns the software view of the line settings.
func (c *Channel) Config() PortConfig {
	defer c.lock()()
	return c.cfg
}

// AchievedBaud is the baud rate produced by the programmed divisor. It reads
// 0 when the last Configure failed part-way through the register writes.
func (c *Channel) AchievedBaud() uint32 {
	defer c.lock()()
	return c.achieved
}

func (c *Channel) RS485() bool {
	defer c.lock()()
	return c.rs485
}

func (c *Channel) FIFOEnabled() bool {
	defer c.lock()()
	return c.fifoEnabled
}

func (c *Channel) ReadBufferSize() int {
	defer c.lock()()
	return c.cfg.ReadBufferSize
}

// Configure reprograms line format, divisor and FIFOs, returning the achieved
// baud rate. Validation errors are reported before any register is written.
func (c *Channel) Configure(cfg PortConfig) (uint32, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	return c.configureLocked(cfg)
}

func (c *Channel) configureLocked(cfg PortConfig) (uint32, error) {
	cfg = cfg.withDefaults()
	format, err := EncodeLineFormat(cfg.DataBits, cfg.Parity, cfg.StopBits)
	if err != nil {
		return 0, err
	}
	mcr, err := c.dev.readReg(MCR, c.id)
	if err != nil {
		return 0, err
	}
	div, err := SynthesizeBaud(c.dev.oscHz, prescalerFromMCR(mcr), cfg.BaudRate)
	if err != nil {
		return 0, err
	}

	// From here on the software view is updated even if a write fails;
	// achieved stays 0 until the whole sequence has gone through.
	c.cfg = cfg
	c.achieved = 0

	if err := c.dev.setLineFormat(c.id, format); err != nil {
		return 0, err
	}
	if err := c.dev.writeDivisor(c.id, div.Value); err != nil {
		return 0, err
	}
	if c.rs485 {
		set, clear := byte(efcrRTSControl), byte(efcrRTSInvert)
		if cfg.InvertDE {
			set, clear = set|efcrRTSInvert, 0
		}
		if err := c.dev.modifyReg(EFCR, c.id, set, clear); err != nil {
			return 0, err
		}
	}
	if err := c.enableFIFOLocked(); err != nil {
		return 0, err
	}
	c.achieved = div.Achieved
	return div.Achieved, nil
}

// EnableFIFO switches on the RX and TX FIFOs.
func (c *Channel) EnableFIFO() error {
	defer c.lock()()
	if c.closed {
		return ErrClosed
	}
	return c.enableFIFOLocked()
}

func (c *Channel) enableFIFOLocked() error {
	v := c.fcr | fcrFIFOEnable
	if err := c.dev.writeReg(FCR, c.id, v); err != nil {
		return err
	}
	c.fcr = v
	c.fifoEnabled = true
	return nil
}

// ---------------- Data path primitives ----------------

// WriteByte writes to THR. FIFO space is the caller's concern.
func (c *Channel) WriteByte(b byte) error {
	defer c.lock()()
	if c.closed {
		return ErrClosed
	}
	return c.dev.writeReg(THR, c.id, b)
}

// ReadByte reads RHR.
func (c *Channel) ReadByte() (byte, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	return c.dev.readReg(RHR, c.id)
}

// WriteFIFOSpace returns the free space in the TX FIFO (0..FIFODepth).
func (c *Channel) WriteFIFOSpace() (int, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	return c.levelLocked(TXLVL)
}

// ReadFIFOCount returns the number of bytes waiting in the RX FIFO
// (0..FIFODepth).
func (c *Channel) ReadFIFOCount() (int, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	return c.levelLocked(RXLVL)
}

func (c *Channel) IsDataAvailable() (bool, error) {
	n, err := c.ReadFIFOCount()
	return n > 0, err
}

func (c *Channel) levelLocked(reg Register) (int, error) {
	v, err := c.dev.readReg(reg, c.id)
	if err != nil {
		return 0, err
	}
	return mathx.Clamp(int(v), 0, FIFODepth), nil
}

// ReadAvailable reads at most len(p) bytes, bounded by what RXLVL reports.
// It never waits.
func (c *Channel) ReadAvailable(p []byte) (int, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	n, err := c.levelLocked(RXLVL)
	if err != nil {
		return 0, err
	}
	n = mathx.Min(n, len(p))
	for i := 0; i < n; i++ {
		b, err := c.dev.readReg(RHR, c.id)
		if err != nil {
			return i, err
		}
		p[i] = b
	}
	return n, nil
}

// WriteAvailable writes as much of p as TXLVL has room for and returns the
// count written. It never waits.
func (c *Channel) WriteAvailable(p []byte) (int, error) {
	defer c.lock()()
	if c.closed {
		return 0, ErrClosed
	}
	n, err := c.levelLocked(TXLVL)
	if err != nil {
		return 0, err
	}
	n = mathx.Min(n, len(p))
	for i := 0; i < n; i++ {
		if err := c.dev.writeReg(THR, c.id, p[i]); err != nil {
			return i, err
		}
	}
	return n, nil
}

// ---------------- Resets ----------------

// ResetReadFIFO discards the RX FIFO. The reset bit self-clears.
func (c *Channel) ResetReadFIFO() error {
	defer c.lock()()
	if c.closed {
		return ErrClosed
	}
	return c.dev.writeReg(FCR, c.id, c.fcr|fcrRxReset)
}

// ResetWriteFIFO discards the TX FIFO. The reset bit self-clears.
func (c *Channel) ResetWriteFIFO() error {
	defer c.lock()()
	if c.closed {
		return ErrClosed
	}
	return c.dev.writeReg(FCR, c.id, c.fcr|fcrTxReset)
}

// ResetChannel issues the software reset in IOControl. The reset is
// device-wide: both UARTs return to their register defaults, so every open
// channel, this one included, must be configured again.
func (c *Channel) ResetChannel() error {
	defer c.dev.lockAll()()
	if c.closed {
		return ErrClosed
	}
	if err := c.dev.modifyReg(IOControl, c.id, ioctlSoftReset, 0); err != nil {
		return err
	}
	for _, ch := range c.dev.owned() {
		ch.clearLocked()
	}
	c.clearLocked()
	return nil
}

// clearLocked drops the software view of programmed hardware state.
func (c *Channel) clearLocked() {
	c.fcr = 0
	c.fifoEnabled = false
	c.achieved = 0
}

// Close releases the slot so the port can be created again. Further calls on
// this handle return ErrClosed. Close does not touch the hardware.
func (c *Channel) Close() error {
	unlock := c.lock()
	if c.closed {
		unlock()
		return ErrClosed
	}
	c.closed = true
	unlock()
	c.dev.release(c)
	return nil
}
