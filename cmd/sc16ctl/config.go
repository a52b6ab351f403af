package main

import (
	"os"

	"gopkg.in/yaml.v2"

	"uartbridge-go/types"
)

type hostConfig struct {
	Serial     string             `yaml:"serial"`
	SerialBaud int                `yaml:"serial_baud"`
	I2CAddr    uint16             `yaml:"i2c_addr"`
	MQTT       mqttConfig         `yaml:"mqtt"`
	Bridge     types.BridgeConfig `yaml:"bridge"`
}

type mqttConfig struct {
	Broker   string `yaml:"broker"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

// loadFile decodes a YAML document into out. Unknown keys are errors.
func loadFile(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(b, out)
}
