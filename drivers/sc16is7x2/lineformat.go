package sc16is7x2

// Parity selects the parity mode. Mark and space parity exist on the part
// but are not offered.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "invalid"
	}
}

// StopBits is the number of stop bits. The zero value means "default" in a
// PortConfig and is rejected by EncodeLineFormat.
type StopBits uint8

const (
	StopBitsOne StopBits = 1
	StopBitsTwo StopBits = 2
)

// EncodeLineFormat returns the LCR[5:0] pattern for the given framing.
//
//	bits 1:0  word length (5..8 data bits -> 00..11)
//	bit  2    two stop bits
//	bit  3    parity enable
//	bit  4    even parity
//	bit  5    forced parity (never set)
func EncodeLineFormat(dataBits uint8, parity Parity, stop StopBits) (byte, error) {
	var v byte
	switch dataBits {
	case 5:
		v = lcrWordLen5
	case 6:
		v = lcrWordLen6
	case 7:
		v = lcrWordLen7
	case 8:
		v = lcrWordLen8
	default:
		return 0, ErrInvalidDataBits
	}

	switch stop {
	case StopBitsOne:
	case StopBitsTwo:
		v |= lcrStopBits2
	default:
		return 0, ErrInvalidStopBits
	}

	switch parity {
	case ParityNone:
	case ParityOdd:
		v |= lcrParityEnable
	case ParityEven:
		v |= lcrParityEnable | lcrParityEven
	default:
		return 0, ErrInvalidParity
	}
	return v, nil
}

// setLineFormat applies bits to LCR[5:0] with a single read-modify-write;
// LCR[7:6] are preserved. Caller holds the channel lock.
func (d *Device) setLineFormat(ch ChannelID, bits byte) error {
	return d.modifyReg(LCR, ch, bits&lcrFormatMask, lcrFormatMask)
}
