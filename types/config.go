package types

import (
	"strconv"

	"uartbridge-go/errcode"
	"uartbridge-go/x/mathx"
)

// Bridge configuration supplied on topic "config/uartbridge".

const (
	DefaultPollMs     = 20
	MinPollMs         = 5
	MaxPollMs         = 1000
	DefaultBaud       = 9600
	DefaultDataBits   = 8
	DefaultStopBits   = 1
	DefaultReadBuffer = 64
)

type BridgeConfig struct {
	OscillatorHz  uint32         `json:"osc_hz,omitempty" yaml:"osc_hz"`
	SharedBusLock bool           `json:"shared_bus_lock,omitempty" yaml:"shared_bus_lock"`
	PollMs        int            `json:"poll_ms,omitempty" yaml:"poll_ms"`
	Ports         []PortSettings `json:"ports" yaml:"ports"`
}

type PortSettings struct {
	Port       string `json:"port" yaml:"port"` // "A" or "B"
	Name       string `json:"name,omitempty" yaml:"name"`
	Disabled   bool   `json:"disabled,omitempty" yaml:"disabled"`
	RS485      bool   `json:"rs485,omitempty" yaml:"rs485"`
	InvertDE   bool   `json:"invert_de,omitempty" yaml:"invert_de"`
	Baud       uint32 `json:"baud,omitempty" yaml:"baud"`
	DataBits   uint8  `json:"data_bits,omitempty" yaml:"data_bits"`
	Parity     string `json:"parity,omitempty" yaml:"parity"`
	StopBits   uint8  `json:"stop_bits,omitempty" yaml:"stop_bits"`
	ReadBuffer int    `json:"read_buffer,omitempty" yaml:"read_buffer"`
}

// Normalize fills defaults and validates a port entry in place.
func (p *PortSettings) Normalize() error {
	switch p.Port {
	case "A", "a":
		p.Port = "A"
	case "B", "b":
		p.Port = "B"
	default:
		return &errcode.E{C: errcode.UnknownPort, Op: "port", Msg: p.Port}
	}
	if p.Name == "" {
		p.Name = "Port" + p.Port
	}
	if p.Baud == 0 {
		p.Baud = DefaultBaud
	}
	if p.DataBits == 0 {
		p.DataBits = DefaultDataBits
	}
	if p.DataBits < 5 || p.DataBits > 8 {
		return &errcode.E{C: errcode.InvalidDataBits, Op: p.Port, Msg: strconv.Itoa(int(p.DataBits))}
	}
	par, err := ParseParity(p.Parity)
	if err != nil {
		return err
	}
	p.Parity = par.String()
	if p.StopBits == 0 {
		p.StopBits = DefaultStopBits
	}
	if p.StopBits != 1 && p.StopBits != 2 {
		return &errcode.E{C: errcode.InvalidStopBits, Op: p.Port, Msg: strconv.Itoa(int(p.StopBits))}
	}
	if p.ReadBuffer <= 0 {
		p.ReadBuffer = DefaultReadBuffer
	}
	if p.InvertDE && !p.RS485 {
		return &errcode.E{C: errcode.InvalidParams, Op: p.Port, Msg: "invert_de requires rs485"}
	}
	return nil
}

// ParityValue returns the parsed parity of a normalised entry.
func (p PortSettings) ParityValue() Parity {
	par, _ := ParseParity(p.Parity)
	return par
}

// Normalize applies defaults to the bridge and each port. A port may appear
// at most once.
func (c *BridgeConfig) Normalize() error {
	if c.PollMs == 0 {
		c.PollMs = DefaultPollMs
	}
	c.PollMs = mathx.Clamp(c.PollMs, MinPollMs, MaxPollMs)

	seen := map[string]bool{}
	for i := range c.Ports {
		if err := c.Ports[i].Normalize(); err != nil {
			return err
		}
		if seen[c.Ports[i].Port] {
			return &errcode.E{C: errcode.PortInUse, Op: c.Ports[i].Port, Msg: "duplicate port"}
		}
		seen[c.Ports[i].Port] = true
	}
	return nil
}
