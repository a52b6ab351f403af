package config

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tailscale/hujson"

	"uartbridge-go/bus"
	"uartbridge-go/types"
	"uartbridge-go/x/logx"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	bridgeKey    = "uartbridge"
	ctxDeviceKey = "device" // context key used for device ID
)

// CtxDeviceKey is the context key under which Start expects the device ID.
const CtxDeviceKey = ctxDeviceKey

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// TopicBridge is where the bridge configuration is retained.
func TopicBridge() bus.Topic { return bus.T(configPrefix, bridgeKey) }

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes
// each top-level key as a retained message on config/<key>. Values are
// published as generic JSON (map[string]any, []any, float64, ...); each
// consumer decodes its own section. Embedded documents may carry comments
// and trailing commas.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(ctxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return err
	}
	var val any
	if err := json.Unmarshal(std, &val); err != nil {
		return err
	}
	m, ok := val.(map[string]any)
	if !ok {
		return errors.New("embedded config is not a JSON object")
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			logx.Logf("[config] publish failed: %v", err)
		}
	}()
}

// PublishBridge retains a typed cfg on config/uartbridge. Host tools use it
// after loading configuration from a file.
func PublishBridge(conn *bus.Connection, cfg types.BridgeConfig) {
	conn.Publish(conn.NewMessage(TopicBridge(), cfg, true))
}
