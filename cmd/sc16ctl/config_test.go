package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartbridge-go/types"
)

func TestLoadFile_Example(t *testing.T) {
	var hc hostConfig
	require.NoError(t, loadFile("sc16ctl.example.yaml", &hc))
	require.NoError(t, hc.Bridge.Normalize())

	assert.Equal(t, "/dev/ttyUSB0", hc.Serial)
	assert.Equal(t, uint16(0x48), hc.I2CAddr)
	assert.Equal(t, "sc16", hc.MQTT.Prefix)
	require.Len(t, hc.Bridge.Ports, 2)
	assert.Equal(t, uint32(115200), hc.Bridge.Ports[0].Baud)
	assert.True(t, hc.Bridge.Ports[1].RS485)
	assert.Equal(t, types.ParityEven, hc.Bridge.Ports[1].ParityValue())
}

func TestLoadFile_BridgeSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	doc := `
osc_hz: 14745600
poll_ms: 25
ports:
  - port: A
    baud: 115200
  - port: B
    rs485: true
    invert_de: true
    parity: odd
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	var bc types.BridgeConfig
	require.NoError(t, loadFile(path, &bc))
	require.NoError(t, bc.Normalize())

	assert.Equal(t, uint32(14745600), bc.OscillatorHz)
	assert.Equal(t, 25, bc.PollMs)
	require.Len(t, bc.Ports, 2)
	assert.True(t, bc.Ports[1].InvertDE)
	assert.Equal(t, types.ParityOdd, bc.Ports[1].ParityValue())
}

func TestLoadFile_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baud_rate: 9600\n"), 0o600))

	var bc types.BridgeConfig
	assert.Error(t, loadFile(path, &bc))
}
