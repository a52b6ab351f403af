package errcode

import (
	"context"
	"errors"

	"uartbridge-go/drivers/sc16is7x2"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	NotConfigured  Code = "not_configured"
	Timeout        Code = "timeout"

	PortInUse            Code = "port_in_use"
	UnknownPort          Code = "unknown_port"
	BaudOutOfRange       Code = "baud_out_of_range"
	InvalidDataBits      Code = "invalid_data_bits"
	InvalidParity        Code = "invalid_parity"
	InvalidStopBits      Code = "invalid_stop_bits"
	TransportUnavailable Code = "transport_unavailable"
	NotDetected          Code = "not_detected"
	Closed               Code = "closed"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E with the code derived from err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

var driverCodes = []struct {
	err  error
	code Code
}{
	{sc16is7x2.ErrPortInUse, PortInUse},
	{sc16is7x2.ErrUnknownPort, UnknownPort},
	{sc16is7x2.ErrBaudOutOfRange, BaudOutOfRange},
	{sc16is7x2.ErrInvalidPrescaler, BaudOutOfRange},
	{sc16is7x2.ErrInvalidDataBits, InvalidDataBits},
	{sc16is7x2.ErrInvalidParity, InvalidParity},
	{sc16is7x2.ErrInvalidStopBits, InvalidStopBits},
	{sc16is7x2.ErrTransportUnavailable, TransportUnavailable},
	{sc16is7x2.ErrNotDetected, NotDetected},
	{sc16is7x2.ErrClosed, Closed},
	{context.DeadlineExceeded, Timeout},
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	for _, dc := range driverCodes {
		if errors.Is(err, dc.err) {
			return dc.code
		}
	}
	return Error
}
