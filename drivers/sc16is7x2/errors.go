package sc16is7x2

import "errors"

var (
	// Channel ownership / lifecycle (TinyGo-safe; no fmt)
	ErrPortInUse            = errors.New("sc16is7x2: port in use")
	ErrUnknownPort          = errors.New("sc16is7x2: unknown port")
	ErrTransportUnavailable = errors.New("sc16is7x2: no register transport")
	ErrClosed               = errors.New("sc16is7x2: channel closed")
	ErrNotDetected          = errors.New("sc16is7x2: device not detected")

	// Line settings
	ErrBaudOutOfRange   = errors.New("sc16is7x2: baud rate not reachable from oscillator")
	ErrInvalidDataBits  = errors.New("sc16is7x2: data bits must be 5/6/7/8")
	ErrInvalidParity    = errors.New("sc16is7x2: parity must be none/odd/even")
	ErrInvalidStopBits  = errors.New("sc16is7x2: stop bits must be 1 or 2")
	ErrInvalidPrescaler = errors.New("sc16is7x2: prescaler must be 1 or 4")
)
