package types

import (
	"strings"

	"uartbridge-go/errcode"
)

// ------------------------
// Serial line settings
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

func (p Parity) MarshalJSON() ([]byte, error) { return []byte(`"` + p.String() + `"`), nil }

// ParseParity accepts none/odd/even and their single-letter forms.
// Mark and space are recognised but not supported by the bridge.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	case "mark", "m", "space", "s":
		return 0, &errcode.E{C: errcode.Unsupported, Op: "parity", Msg: s}
	}
	return 0, &errcode.E{C: errcode.InvalidParams, Op: "parity", Msg: s}
}

// ------------------------
// Port state (retained on uartbridge/<port>/state)
// ------------------------

type PortState struct {
	Level        string `json:"level"`
	Status       string `json:"status"`
	Baud         uint32 `json:"baud,omitempty"`
	AchievedBaud uint32 `json:"achieved_baud,omitempty"`
	Error        string `json:"error,omitempty"`
	TS           int64  `json:"ts_ms"`
}

// RxEvent reports a change in RX data availability on a port. Only edges
// are reported: Available flips between consecutive events of one port.
type RxEvent struct {
	Port      string `json:"port"`
	Available bool   `json:"available"`
	Count     int    `json:"count"`
	TS        int64  `json:"ts_ms"`
}

// ------------------------
// Control payloads (uartbridge/<port>/ctl/<verb>)
// ------------------------

// SerialWrite carries bytes for "write". Text is used when Data is empty.
type SerialWrite struct {
	Data []byte `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

type SerialWriteReply struct {
	OK      bool `json:"ok"`
	Written int  `json:"written"`
}

// SerialRead limits a "read"; Max 0 drains whatever the RX FIFO holds.
type SerialRead struct {
	Max int `json:"max,omitempty"`
}

type SerialReadReply struct {
	OK   bool   `json:"ok"`
	Data []byte `json:"data"`
}

type SerialFIFOReply struct {
	OK      bool `json:"ok"`
	RX      int  `json:"rx"`
	TXSpace int  `json:"tx_space"`
}

type SerialResetFIFO struct {
	RX bool `json:"rx"`
	TX bool `json:"tx"`
}

type SerialInfo struct {
	Port         string `json:"port"`
	Name         string `json:"name"`
	RS485        bool   `json:"rs485"`
	Baud         uint32 `json:"baud"`
	AchievedBaud uint32 `json:"achieved_baud"`
	DataBits     uint8  `json:"data_bits"`
	Parity       Parity `json:"parity"`
	StopBits     uint8  `json:"stop_bits"`
}
