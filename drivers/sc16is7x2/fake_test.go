package sc16is7x2

import (
	"errors"
	"sync"
)

// access is one decoded register transaction seen by the fake.
type access struct {
	Write bool
	Addr  byte
	Val   byte
}

func rd(reg Register, ch ChannelID, v byte) access {
	return access{Addr: SubAddress(reg, ch), Val: v}
}

func wr(reg Register, ch ChannelID, v byte) access {
	return access{Write: true, Addr: SubAddress(reg, ch), Val: v}
}

var errBus = errors.New("bus fault")

// regFile is a register-level model of the part, enough for the driver:
// per-channel general registers, the DLAB-banked divisor, RX/TX FIFOs with
// RXLVL/TXLVL, and write-only FCR.
type regFile struct {
	mu sync.Mutex

	regs [2][16]byte
	dll  [2]byte
	dlh  [2]byte
	fcr  [2]byte
	rx   [2][]byte
	tx   [2][]byte

	// Overrides for the level registers; -1 = derive from the FIFOs.
	rxlvl [2]int
	txlvl [2]int

	trace []access

	// strays counts accesses to a channel while its divisor latch is open,
	// other than the DLL/DLH/LCR writes of the latch section itself.
	strays int

	// failAt makes the n-th access (1-based) fail; 0 disables.
	failAt int
	n      int
}

func newRegFile() *regFile {
	return &regFile{rxlvl: [2]int{-1, -1}, txlvl: [2]int{-1, -1}}
}

func decode(addr byte) (Register, int) {
	return Register(addr>>3) & 0x0F, int(addr>>1) & 0x01
}

func (f *regFile) fail() bool {
	f.n++
	return f.failAt != 0 && f.n == f.failAt
}

func (f *regFile) ReadRegister(addr byte) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return 0, errBus
	}
	reg, ch := decode(addr)
	dlab := f.regs[ch][LCR]&lcrDivisorLatch != 0
	if dlab {
		f.strays++
	}

	var v byte
	switch {
	case reg == DLL && dlab:
		v = f.dll[ch]
	case reg == DLH && dlab:
		v = f.dlh[ch]
	case reg == RHR:
		if len(f.rx[ch]) > 0 {
			v = f.rx[ch][0]
			f.rx[ch] = f.rx[ch][1:]
		}
	case reg == IIR:
		v = 0x01 // no interrupt pending
	case reg == RXLVL:
		if f.rxlvl[ch] >= 0 {
			v = byte(f.rxlvl[ch])
		} else {
			v = byte(len(f.rx[ch]))
		}
	case reg == TXLVL:
		if f.txlvl[ch] >= 0 {
			v = byte(f.txlvl[ch])
		} else {
			v = byte(FIFODepth - len(f.tx[ch]))
		}
	default:
		v = f.regs[ch][reg]
	}
	f.trace = append(f.trace, access{Addr: addr, Val: v})
	return v, nil
}

func (f *regFile) WriteRegister(addr, v byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return errBus
	}
	f.trace = append(f.trace, access{Write: true, Addr: addr, Val: v})
	reg, ch := decode(addr)
	dlab := f.regs[ch][LCR]&lcrDivisorLatch != 0
	if dlab && reg != DLL && reg != DLH && reg != LCR {
		f.strays++
	}

	switch {
	case reg == DLL && dlab:
		f.dll[ch] = v
	case reg == DLH && dlab:
		f.dlh[ch] = v
	case reg == THR:
		f.tx[ch] = append(f.tx[ch], v)
	case reg == FCR:
		if v&fcrRxReset != 0 {
			f.rx[ch] = nil
		}
		if v&fcrTxReset != 0 {
			f.tx[ch] = nil
		}
		f.fcr[ch] = v &^ (fcrRxReset | fcrTxReset)
	case reg == IOControl:
		if v&ioctlSoftReset != 0 {
			f.regs = [2][16]byte{}
			f.dll, f.dlh, f.fcr = [2]byte{}, [2]byte{}, [2]byte{}
			f.rx, f.tx = [2][]byte{}, [2][]byte{}
			return nil
		}
		f.regs[ch][reg] = v
	default:
		f.regs[ch][reg] = v
	}
	return nil
}

func (f *regFile) divisor(ch ChannelID) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint16(f.dlh[ch])<<8 | uint16(f.dll[ch])
}

func (f *regFile) reg(reg Register, ch ChannelID) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[ch][reg]
}

func (f *regFile) set(reg Register, ch ChannelID, v byte) {
	f.mu.Lock()
	f.regs[ch][reg] = v
	f.mu.Unlock()
}

func (f *regFile) inject(ch ChannelID, b ...byte) {
	f.mu.Lock()
	f.rx[ch] = append(f.rx[ch], b...)
	f.mu.Unlock()
}

func (f *regFile) sent(ch ChannelID) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.tx[ch]...)
}

func (f *regFile) strayAccesses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strays
}

func (f *regFile) takeTrace() []access {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.trace
	f.trace = nil
	return t
}

func (f *regFile) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.trace {
		if a.Write {
			n++
		}
	}
	return n
}
