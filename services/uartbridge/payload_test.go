package uartbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartbridge-go/bus"
	"uartbridge-go/errcode"
	"uartbridge-go/services/config"
	"uartbridge-go/types"
)

func TestDecodeConfig_EmbeddedPico(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(topicConfig())
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	var m *bus.Message
	select {
	case m = <-sub.Channel():
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}
	cfg, err := decodeConfig(m.Payload)
	require.NoError(t, err)
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, uint32(1_843_200), cfg.OscillatorHz)
	assert.Equal(t, 20, cfg.PollMs)
	require.Len(t, cfg.Ports, 2)
	assert.Equal(t, "console", cfg.Ports[0].Name)
	assert.Equal(t, uint32(115200), cfg.Ports[0].Baud)
	assert.True(t, cfg.Ports[1].RS485)
	assert.Equal(t, types.ParityEven, cfg.Ports[1].ParityValue())
}

func TestDecodeConfig_Generic(t *testing.T) {
	cfg, err := decodeConfig(map[string]any{
		"osc_hz":  float64(14745600),
		"poll_ms": float64(50),
		"ports": []any{
			map[string]any{"port": "B", "baud": float64(57600), "stop_bits": float64(2), "invert_de": true, "rs485": true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(14745600), cfg.OscillatorHz)
	require.Len(t, cfg.Ports, 1)
	assert.Equal(t, uint32(57600), cfg.Ports[0].Baud)
	assert.Equal(t, uint8(2), cfg.Ports[0].StopBits)
	assert.True(t, cfg.Ports[0].InvertDE)
}

func TestDecodeConfig_BadSection(t *testing.T) {
	_, err := decodeConfig(map[string]any{"ports": "nope"})
	assert.Equal(t, errcode.InvalidPayload, errcode.Of(err))

	_, err = decodeConfig(`{"ports": 7}`)
	assert.Equal(t, errcode.InvalidPayload, errcode.Of(err))
}

func TestDecodeInto_MergesGenericOverCurrent(t *testing.T) {
	ps := types.PortSettings{Port: "A", Name: "console", Baud: 9600, DataBits: 8, Parity: "none"}
	require.NoError(t, decodeInto(map[string]any{"baud": 19200, "parity": "odd"}, &ps))
	assert.Equal(t, uint32(19200), ps.Baud)
	assert.Equal(t, "odd", ps.Parity)
	assert.Equal(t, "console", ps.Name)
	assert.Equal(t, uint8(8), ps.DataBits)
}

func TestWriteData(t *testing.T) {
	for _, p := range []any{[]byte("hi"), "hi", types.SerialWrite{Text: "hi"}, map[string]any{"text": "hi"}} {
		got, err := writeData(p)
		require.NoError(t, err)
		assert.Equal(t, []byte("hi"), got, "%T", p)
	}
}
