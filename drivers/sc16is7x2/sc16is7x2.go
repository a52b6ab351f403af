// Package sc16is7x2 provides a TinyGo-friendly driver for the NXP SC16IS752 /
// SC16IS762 dual UART with I2C/SPI host interface.
//
// Design notes (datasheet references):
// • Registers are reached through a sub-address byte: code<<3 | channel<<1.
// • Baud rate is oscillator/prescaler/(16*divisor); the divisor is written to
//   DLL/DLH while LCR[7] (divisor latch) is set, and the latch is cleared after.
// • FCR is write-only (reads at the same code return IIR); a shadow is kept.
// • Each channel is handed out once; a second claim fails until Close.
package sc16is7x2

import (
	"sync"
)

// Default crystal on most breakout boards.
const OscillatorDefault = 1_843_200

// ---------------- Types and configuration ----------------

type Config struct {
	// OscillatorHz is the XTAL1 frequency. 0 selects OscillatorDefault.
	OscillatorHz uint32
	// SharedBusLock serialises multi-register sequences of both channels
	// behind one lock. Set it when the transport is not re-entrant.
	SharedBusLock bool
}

// PortName identifies a channel on a specific controller.
type PortName struct {
	FriendlyName string
	SystemName   string // "A" or "B"
	owner        *Device
}

// NewPortName builds a name not bound to a controller; any Device accepts it.
func NewPortName(friendly, system string) PortName {
	return PortName{FriendlyName: friendly, SystemName: system}
}

func (p PortName) String() string { return p.FriendlyName }

type slotState uint8

const (
	slotEmpty   slotState = iota
	slotClaimed           // reserved while registers are programmed
	slotOwned
)

type slot struct {
	state slotState
	ch    *Channel // set only in slotOwned
}

type Device struct {
	bus    Transport
	oscHz  uint32
	shared bool

	mu    sync.Mutex // guards slots
	slots [2]slot

	busMu sync.Mutex
	chMu  [2]sync.Mutex
}

// New creates the controller. It does not touch the device; use Probe to
// check presence.
func New(bus Transport, cfg Config) *Device {
	osc := cfg.OscillatorHz
	if osc == 0 {
		osc = OscillatorDefault
	}
	return &Device{
		bus:    bus,
		oscHz:  osc,
		shared: cfg.SharedBusLock,
	}
}

func (d *Device) OscillatorHz() uint32 { return d.oscHz }

func (d *Device) PortA() PortName { return PortName{FriendlyName: "PortA", SystemName: "A", owner: d} }
func (d *Device) PortB() PortName { return PortName{FriendlyName: "PortB", SystemName: "B", owner: d} }

// Probe writes a pattern to the scratchpad register of channel A and reads it
// back.
func (d *Device) Probe() error {
	l := d.lockFor(ChannelA)
	l.Lock()
	defer l.Unlock()
	if err := d.writeReg(SPR, ChannelA, sprProbe); err != nil {
		return err
	}
	v, err := d.readReg(SPR, ChannelA)
	if err != nil {
		return err
	}
	if v != sprProbe {
		return ErrNotDetected
	}
	return nil
}

// ---------------- Channel creation ----------------

// CreateSerialPort claims the named channel and programs it. Zero fields in
// cfg take the defaults 9600 baud, 8 data bits, no parity, one stop bit and
// a 64-byte read buffer.
func (d *Device) CreateSerialPort(name PortName, cfg ...PortConfig) (*Channel, error) {
	return d.create(name, firstConfig(cfg), false)
}

// CreateRS485SerialPort is CreateSerialPort with RS-485 auto direction
// control enabled before the FIFOs are switched on.
func (d *Device) CreateRS485SerialPort(name PortName, cfg ...PortConfig) (*Channel, error) {
	return d.create(name, firstConfig(cfg), true)
}

// Channel returns the owned channel for id, if any.
func (d *Device) Channel(id ChannelID) (*Channel, bool) {
	if id > ChannelB {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.slots[id]
	if s.state != slotOwned {
		return nil, false
	}
	return s.ch, true
}

func firstConfig(cfg []PortConfig) PortConfig {
	if len(cfg) > 0 {
		return cfg[0]
	}
	return PortConfig{}
}

func (d *Device) create(name PortName, cfg PortConfig, rs485 bool) (*Channel, error) {
	id, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	if d.bus == nil {
		return nil, ErrTransportUnavailable
	}
	if err := d.claim(id); err != nil {
		return nil, err
	}

	ch := &Channel{dev: d, id: id, name: name.FriendlyName, rs485: rs485}
	if ch.name == "" {
		ch.name = "Port" + id.String()
	}

	// Slot state changes under the channel lock; ResetChannel relies on it.
	l := d.lockFor(id)
	l.Lock()
	defer l.Unlock()
	if _, err := ch.configureLocked(cfg); err != nil {
		d.abort(id)
		return nil, err
	}
	d.commit(id, ch)
	return ch, nil
}

func (d *Device) resolve(name PortName) (ChannelID, error) {
	if name.owner != nil && name.owner != d {
		return 0, ErrUnknownPort
	}
	switch name.SystemName {
	case "A":
		return ChannelA, nil
	case "B":
		return ChannelB, nil
	}
	return 0, ErrUnknownPort
}

// ---------------- Slot table ----------------

func (d *Device) claim(id ChannelID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slots[id].state != slotEmpty {
		return ErrPortInUse
	}
	d.slots[id] = slot{state: slotClaimed}
	return nil
}

func (d *Device) commit(id ChannelID, ch *Channel) {
	d.mu.Lock()
	d.slots[id] = slot{state: slotOwned, ch: ch}
	d.mu.Unlock()
}

func (d *Device) abort(id ChannelID) {
	d.mu.Lock()
	d.slots[id] = slot{state: slotEmpty}
	d.mu.Unlock()
}

// release returns an owned slot to empty. A stale handle cannot free a slot
// that has since been claimed by someone else.
func (d *Device) release(ch *Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.slots[ch.id]; s.state == slotOwned && s.ch == ch {
		d.slots[ch.id] = slot{state: slotEmpty}
	}
}

// ---------------- Register access ----------------

func (d *Device) lockFor(id ChannelID) *sync.Mutex {
	if d.shared {
		return &d.busMu
	}
	return &d.chMu[id&1]
}

// lockAll takes the locks of both channels, A before B, and returns the
// unlock function. Lock order: channel locks, then d.mu.
func (d *Device) lockAll() func() {
	if d.shared {
		d.busMu.Lock()
		return d.busMu.Unlock
	}
	d.chMu[ChannelA].Lock()
	d.chMu[ChannelB].Lock()
	return func() {
		d.chMu[ChannelB].Unlock()
		d.chMu[ChannelA].Unlock()
	}
}

// owned lists the channels currently handed out.
func (d *Device) owned() []*Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Channel
	for _, s := range d.slots {
		if s.state == slotOwned {
			out = append(out, s.ch)
		}
	}
	return out
}

func (d *Device) readReg(reg Register, ch ChannelID) (byte, error) {
	if d.bus == nil {
		return 0, ErrTransportUnavailable
	}
	return d.bus.ReadRegister(SubAddress(reg, ch))
}

func (d *Device) writeReg(reg Register, ch ChannelID, v byte) error {
	if d.bus == nil {
		return ErrTransportUnavailable
	}
	return d.bus.WriteRegister(SubAddress(reg, ch), v)
}

// modifyReg is a read-modify-write helper: clear is applied before set.
func (d *Device) modifyReg(reg Register, ch ChannelID, set, clear byte) error {
	cur, err := d.readReg(reg, ch)
	if err != nil {
		return err
	}
	return d.writeReg(reg, ch, (cur&^clear)|set)
}
