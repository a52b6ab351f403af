package errcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"uartbridge-go/drivers/sc16is7x2"
)

func TestCodesAreStable(t *testing.T) {
	cases := map[Code]string{
		OK:                   "ok",
		PortInUse:            "port_in_use",
		UnknownPort:          "unknown_port",
		BaudOutOfRange:       "baud_out_of_range",
		InvalidDataBits:      "invalid_data_bits",
		TransportUnavailable: "transport_unavailable",
		Unsupported:          "unsupported",
		Timeout:              "timeout",
	}
	for c, want := range cases {
		if string(c) != want || c.Error() != want {
			t.Fatalf("code %q changed, want %q", c, want)
		}
	}
}

func TestMapDriverErr(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{sc16is7x2.ErrPortInUse, PortInUse},
		{fmt.Errorf("open A: %w", sc16is7x2.ErrUnknownPort), UnknownPort},
		{sc16is7x2.ErrBaudOutOfRange, BaudOutOfRange},
		{sc16is7x2.ErrInvalidDataBits, InvalidDataBits},
		{sc16is7x2.ErrInvalidParity, InvalidParity},
		{sc16is7x2.ErrTransportUnavailable, TransportUnavailable},
		{errors.Join(errors.New("i2c nack"), sc16is7x2.ErrNotDetected), NotDetected},
		{context.DeadlineExceeded, Timeout},
		{errors.New("something else"), Error},
	}
	for _, tc := range cases {
		if got := MapDriverErr(tc.err); got != tc.want {
			t.Fatalf("MapDriverErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestOf(t *testing.T) {
	if got := Of(Busy); got != Busy {
		t.Fatalf("Of(Code) = %q", got)
	}
	wrapped := fmt.Errorf("ctl: %w", &E{C: Unsupported, Msg: "mark parity"})
	if got := Of(wrapped); got != Unsupported {
		t.Fatalf("Of(wrapped E) = %q", got)
	}
	if got := Of(sc16is7x2.ErrClosed); got != Closed {
		t.Fatalf("Of(driver sentinel) = %q", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("open", nil) != nil {
		t.Fatal("Wrap(nil) != nil")
	}
	err := Wrap("open", sc16is7x2.ErrPortInUse)
	if Of(err) != PortInUse || !errors.Is(err, sc16is7x2.ErrPortInUse) {
		t.Fatalf("Wrap lost code or cause: %v", err)
	}
	if err.Error() != "open: port_in_use: sc16is7x2: port in use" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
