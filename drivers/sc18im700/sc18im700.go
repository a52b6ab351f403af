// Package sc18im700 drives an NXP SC18IM700 UART-to-I2C master so a host
// with only a serial port can talk to I2C parts. Adapter implements
// tinygo.org/x/drivers.I2C.
//
// Frame format (datasheet section 7.2):
// • write:      'S' addr<<1 len data... 'P'
// • read:       'S' addr<<1|1 len 'P'                 → len bytes back
// • write+read: 'S' addr<<1 wlen data... 'S' addr<<1|1 rlen 'P'
// • register:   'R' reg 'P' → 1 byte, 'W' reg value 'P'
// The I2CStat register reports how the last bus transaction ended.
package sc18im700

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"tinygo.org/x/drivers"
)

// ---------------- Protocol constants ----------------

const (
	cmdStart    = 'S'
	cmdStop     = 'P'
	cmdReadReg  = 'R'
	cmdWriteReg = 'W'

	RegI2CStat = 0x0A

	statOK       = 0xF0
	statNackAddr = 0xF1
	statNackData = 0xF2
	statTimeout  = 0xF8

	// One transfer carries at most 255 bytes per direction.
	MaxTransfer = 255

	// Power-on baud rate of the SC18IM700.
	DefaultBaud = 9600

	DefaultReadTimeout = 200 * time.Millisecond
)

var (
	ErrAddrNack   = errors.New("sc18im700: address not acknowledged")
	ErrDataNack   = errors.New("sc18im700: data not acknowledged")
	ErrBusTimeout = errors.New("sc18im700: i2c bus timeout")
	ErrStatus     = errors.New("sc18im700: unexpected i2c status")
	ErrTimeout    = errors.New("sc18im700: no response from adapter")
	ErrTooLong    = errors.New("sc18im700: transfer longer than 255 bytes")
)

// ---------------- Adapter ----------------

// Adapter serialises all traffic to one SC18IM700. A serial read returning
// (0, nil) is treated as a timeout, which is how go.bug.st/serial reports an
// expired read deadline.
type Adapter struct {
	mu   sync.Mutex
	port io.ReadWriter
	buf  []byte
}

var _ drivers.I2C = (*Adapter)(nil)

// New wraps an already-open serial link.
func New(port io.ReadWriter) *Adapter {
	return &Adapter{port: port, buf: make([]byte, 0, 2*MaxTransfer+8)}
}

// Config describes the host serial port.
type Config struct {
	Path        string
	Baud        int           // 0 selects DefaultBaud
	ReadTimeout time.Duration // 0 selects DefaultReadTimeout
}

// Open opens the serial device and returns an adapter plus the port so the
// caller can close it.
func Open(cfg Config) (*Adapter, serial.Port, error) {
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	port, err := serial.Open(cfg.Path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, nil, err
	}
	return New(port), port, nil
}

// Tx performs a write, a read, or a write followed by a repeated-start read
// on 7-bit address addr, then checks I2CStat.
func (a *Adapter) Tx(addr uint16, w, r []byte) error {
	if len(w) > MaxTransfer || len(r) > MaxTransfer {
		return ErrTooLong
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = a.buf[:0]
	a7 := byte(addr<<1) & 0xFE
	if len(w) > 0 || len(r) == 0 {
		a.buf = append(a.buf, cmdStart, a7, byte(len(w)))
		a.buf = append(a.buf, w...)
	}
	if len(r) > 0 {
		a.buf = append(a.buf, cmdStart, a7|1, byte(len(r)))
	}
	a.buf = append(a.buf, cmdStop)
	if _, err := a.port.Write(a.buf); err != nil {
		return err
	}
	if len(r) > 0 {
		if err := a.readFull(r); err != nil {
			return err
		}
	}
	st, err := a.readRegLocked(RegI2CStat)
	if err != nil {
		return err
	}
	return statusErr(st)
}

// ReadRegister reads an internal adapter register.
func (a *Adapter) ReadRegister(reg byte) (byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readRegLocked(reg)
}

// WriteRegister writes an internal adapter register (baud rate, GPIO, I2C
// clock). No response is returned by the part.
func (a *Adapter) WriteRegister(reg, value byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.port.Write([]byte{cmdWriteReg, reg, value, cmdStop})
	return err
}

func (a *Adapter) readRegLocked(reg byte) (byte, error) {
	if _, err := a.port.Write([]byte{cmdReadReg, reg, cmdStop}); err != nil {
		return 0, err
	}
	var b [1]byte
	if err := a.readFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (a *Adapter) readFull(p []byte) error {
	for got := 0; got < len(p); {
		n, err := a.port.Read(p[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTimeout
		}
		got += n
	}
	return nil
}

func statusErr(st byte) error {
	switch st {
	case statOK:
		return nil
	case statNackAddr:
		return ErrAddrNack
	case statNackData:
		return ErrDataNack
	case statTimeout:
		return ErrBusTimeout
	}
	return ErrStatus
}
