package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPico = `{
  "uartbridge": {
    "osc_hz": 1843200, // X1 crystal on the breakout
    "poll_ms": 20,
    "ports": [
      {"port": "A", "name": "console", "baud": 115200},
      // B drives the transceiver DE pin from RTS
      {"port": "B", "name": "rs485", "rs485": true, "baud": 9600, "parity": "even"},
    ],
  },
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
