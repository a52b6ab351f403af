package uartbridge

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"uartbridge-go/drivers/sc16is7x2"
	"uartbridge-go/errcode"
	"uartbridge-go/types"
)

// decodeInto accepts a typed payload as-is. Generic values (maps from the
// config service, decoded JSON) are decoded over the current contents of out
// by field tag, so absent keys keep their value. Raw bytes and strings are
// JSON documents.
func decodeInto[T any](p any, out *T) error {
	var err error
	switch v := p.(type) {
	case nil:
		return nil
	case T:
		*out = v
		return nil
	case *T:
		if v != nil {
			*out = *v
		}
		return nil
	case []byte:
		err = json.Unmarshal(v, out)
	case string:
		err = json.Unmarshal([]byte(v), out)
	case map[string]any:
		err = decodeGeneric(v, out)
	default:
		var b []byte
		if b, err = json.Marshal(v); err == nil {
			err = json.Unmarshal(b, out)
		}
	}
	if err != nil {
		return &errcode.E{C: errcode.InvalidPayload, Msg: err.Error(), Err: err}
	}
	return nil
}

func decodeGeneric(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func decodeConfig(p any) (types.BridgeConfig, error) {
	var cfg types.BridgeConfig
	err := decodeInto(p, &cfg)
	return cfg, err
}

// writeData takes raw bytes or text directly; structured payloads go
// through types.SerialWrite.
func writeData(p any) ([]byte, error) {
	switch v := p.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	var w types.SerialWrite
	if err := decodeInto(p, &w); err != nil {
		return nil, err
	}
	if len(w.Data) == 0 {
		return []byte(w.Text), nil
	}
	return w.Data, nil
}

// portConfig converts normalised settings to the driver's view.
func portConfig(ps types.PortSettings) sc16is7x2.PortConfig {
	pc := sc16is7x2.PortConfig{
		BaudRate:       ps.Baud,
		DataBits:       ps.DataBits,
		StopBits:       sc16is7x2.StopBits(ps.StopBits),
		ReadBufferSize: ps.ReadBuffer,
		InvertDE:       ps.InvertDE,
	}
	switch ps.ParityValue() {
	case types.ParityOdd:
		pc.Parity = sc16is7x2.ParityOdd
	case types.ParityEven:
		pc.Parity = sc16is7x2.ParityEven
	default:
		pc.Parity = sc16is7x2.ParityNone
	}
	return pc
}

func portName(dev *sc16is7x2.Device, ps types.PortSettings) sc16is7x2.PortName {
	n := dev.PortA()
	if ps.Port == "B" {
		n = dev.PortB()
	}
	if ps.Name != "" {
		n.FriendlyName = ps.Name
	}
	return n
}

// retryable reports transport-level failures worth another attempt.
// Ownership and validation errors are final.
func retryable(err error) bool {
	switch errcode.Of(err) {
	case errcode.Error, errcode.Timeout, errcode.NotDetected:
		return true
	}
	return false
}
