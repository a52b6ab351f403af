package sc16is7x2

import (
	"sync"

	"tinygo.org/x/drivers"
)

// Transport is the byte-register primitive the controller is built on. Each
// call must be atomic on the wire; sequences spanning several registers are
// serialised by the Device, not by the transport.
type Transport interface {
	ReadRegister(subaddr byte) (byte, error)
	WriteRegister(subaddr, value byte) error
}

// 7-bit I2C address with A1 = A0 = VDD. The part decodes 16 addresses
// (0x48..0x57) from the A0/A1 strapping.
const AddressDefault = 0x48

// I2CTransport reaches the part over I2C. A register read is a one-byte
// write of the sub-address followed by a repeated-start read.
//
// NOTE: drivers.I2C.Tx MUST issue the write and the read without releasing
// the bus when both w and r are provided.
type I2CTransport struct {
	mu   sync.Mutex
	bus  drivers.I2C
	addr uint16

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [1]byte
}

// NewI2C binds a transport to an already-configured bus. addr 0 selects
// AddressDefault.
func NewI2C(bus drivers.I2C, addr uint16) *I2CTransport {
	if addr == 0 {
		addr = AddressDefault
	}
	return &I2CTransport{bus: bus, addr: addr}
}

func (t *I2CTransport) Address() uint16 { return t.addr }

func (t *I2CTransport) ReadRegister(subaddr byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w[0] = subaddr
	if err := t.bus.Tx(t.addr, t.w[:1], t.r[:1]); err != nil {
		return 0, err
	}
	return t.r[0], nil
}

func (t *I2CTransport) WriteRegister(subaddr, value byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w[0] = subaddr
	t.w[1] = value
	return t.bus.Tx(t.addr, t.w[:2], nil)
}

// PinOutput drives a digital output (true = high). Keeps the driver portable.
type PinOutput func(level bool)

// SPI frames carry the R/W flag in bit 7 of the sub-address byte.
const spiRead = 0x80

// SPITransport reaches the part over SPI mode 0. CS is active-low and is
// optional when the bus asserts chip-select itself.
type SPITransport struct {
	mu  sync.Mutex
	bus drivers.SPI
	cs  PinOutput

	w [2]byte
	r [2]byte
}

func NewSPI(bus drivers.SPI, cs PinOutput) *SPITransport {
	t := &SPITransport{bus: bus, cs: cs}
	t.deselect()
	return t
}

func (t *SPITransport) selectChip() {
	if t.cs != nil {
		t.cs(false)
	}
}

func (t *SPITransport) deselect() {
	if t.cs != nil {
		t.cs(true)
	}
}

func (t *SPITransport) ReadRegister(subaddr byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w[0] = spiRead | subaddr
	t.w[1] = 0
	t.selectChip()
	err := t.bus.Tx(t.w[:2], t.r[:2])
	t.deselect()
	if err != nil {
		return 0, err
	}
	return t.r[1], nil
}

func (t *SPITransport) WriteRegister(subaddr, value byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w[0] = subaddr &^ spiRead
	t.w[1] = value
	t.selectChip()
	err := t.bus.Tx(t.w[:2], nil)
	t.deselect()
	return err
}

var (
	_ Transport = (*I2CTransport)(nil)
	_ Transport = (*SPITransport)(nil)
)
