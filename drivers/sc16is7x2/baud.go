package sc16is7x2

import (
	"errors"

	"uartbridge-go/x/mathx"
)

// Divisor is the result of baud-rate synthesis. The part's baud rate is a
// division of the oscillator, so Achieved may differ from the request.
type Divisor struct {
	Value    uint16 // DLH:DLL
	Achieved uint32 // integer baud produced by Value
}

// SynthesizeBaud computes the divisor for baud from the oscillator frequency
// and the MCR prescaler (1 or 4):
//
//	divisor  = ceil((oscHz/prescaler) / (baud*16))
//	achieved = (oscHz/prescaler) / divisor / 16
//
// The arithmetic is done on the undivided oscillator so that a /4 prescaler
// on an oscillator not divisible by 4 loses nothing to truncation.
func SynthesizeBaud(oscHz uint32, prescaler uint8, baud uint32) (Divisor, error) {
	if prescaler != 1 && prescaler != 4 {
		return Divisor{}, ErrInvalidPrescaler
	}
	if baud == 0 || oscHz == 0 {
		return Divisor{}, ErrBaudOutOfRange
	}
	// baud*16 > oscHz/prescaler, i.e. faster than a divisor of 1 allows.
	scaled := uint64(baud) * 16 * uint64(prescaler)
	if scaled > uint64(oscHz) {
		return Divisor{}, ErrBaudOutOfRange
	}
	div := mathx.CeilDiv(uint64(oscHz), scaled)
	if div > 0xFFFF {
		return Divisor{}, ErrBaudOutOfRange
	}
	achieved := uint64(oscHz) / (uint64(prescaler) * div * 16)
	return Divisor{Value: uint16(div), Achieved: uint32(achieved)}, nil
}

func prescalerFromMCR(mcr byte) uint8 {
	if mcr&mcrClockDiv4 != 0 {
		return 4
	}
	return 1
}

// withDivisorLatch sets LCR[7], runs fn, and clears LCR[7] again on every
// exit path. While the latch is set, codes 0x00/0x01 address DLL/DLH instead
// of RHR/THR/IER. Caller holds the channel lock.
func (d *Device) withDivisorLatch(ch ChannelID, fn func() error) (err error) {
	lcr, err := d.readReg(LCR, ch)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.writeReg(LCR, ch, lcr&^lcrDivisorLatch); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if err := d.writeReg(LCR, ch, lcr|lcrDivisorLatch); err != nil {
		return err
	}
	return fn()
}

// writeDivisor programs DLL (low) then DLH (high) inside the latch section.
func (d *Device) writeDivisor(ch ChannelID, div uint16) error {
	return d.withDivisorLatch(ch, func() error {
		if err := d.writeReg(DLL, ch, byte(div)); err != nil {
			return err
		}
		return d.writeReg(DLH, ch, byte(div>>8))
	})
}
