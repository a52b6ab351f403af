// Package mqttmirror copies bridge state and RX events from the local bus to
// an MQTT broker and turns MQTT control messages into bus requests.
//
// Outbound: uartbridge/# (except ctl requests) → <prefix>/uartbridge/...
// Inbound:  <prefix>/uartbridge/<port>/ctl/<verb> → bus request, reply on
// the same MQTT topic with "/reply" appended. The payload goes to the bus as
// raw bytes, so "write" sends it verbatim and the other verbs read it as JSON.
package mqttmirror

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"uartbridge-go/bus"
	"uartbridge-go/x/logx"
	"uartbridge-go/x/timex"
)

const (
	DefaultPrefix  = "sc16"
	DefaultTimeout = 2 * time.Second
)

// Client is the part of mqtt.Client the mirror uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Envelope wraps every outbound payload.
type Envelope struct {
	CorrelationID string `json:"correlation_id"`
	Topic         string `json:"topic"`
	TS            int64  `json:"ts_ms"`
	Payload       any    `json:"payload,omitempty"`
}

type Config struct {
	Prefix  string        // "" selects DefaultPrefix
	Timeout time.Duration // per publish and per bus request; 0 selects DefaultTimeout
}

type Mirror struct {
	conn    *bus.Connection
	client  Client
	prefix  string
	timeout time.Duration
}

func New(conn *bus.Connection, client Client, cfg Config) *Mirror {
	m := &Mirror{conn: conn, client: client, prefix: cfg.Prefix, timeout: cfg.Timeout}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	return m
}

// Dial connects to broker with automatic reconnect.
func Dial(broker, clientID string) (mqtt.Client, error) {
	if clientID == "" {
		clientID = "sc16ctl-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqtt: connect timeout")
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// Run mirrors until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	sub := m.conn.Subscribe(bus.T("uartbridge", "#"))
	defer m.conn.Unsubscribe(sub)

	ctlFilter := m.prefix + "/uartbridge/+/ctl/+"
	tok := m.client.Subscribe(ctlFilter, 1, func(_ mqtt.Client, msg mqtt.Message) {
		go m.forward(ctx, msg.Topic(), msg.Payload())
	})
	if err := wait(tok, m.timeout); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			if isControl(msg.Topic) {
				continue
			}
			m.publish(m.prefix+"/"+msg.Topic.String(), msg.Retained, msg.Topic.String(), msg.Payload)
		}
	}
}

func (m *Mirror) publish(topic string, retained bool, origin string, payload any) {
	body, err := json.Marshal(Envelope{
		CorrelationID: uuid.NewString(),
		Topic:         origin,
		TS:            timex.NowMs(),
		Payload:       payload,
	})
	if err != nil {
		logx.Logf("[mqtt] encode %s: %v", origin, err)
		return
	}
	if err := wait(m.client.Publish(topic, 0, retained, body), m.timeout); err != nil {
		logx.Logf("[mqtt] publish %s: %v", topic, err)
	}
}

// forward sends an MQTT control message to the bus and publishes the reply.
func (m *Mirror) forward(ctx context.Context, topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, m.prefix+"/")
	if !ok {
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return
	}
	bt := make(bus.Topic, len(parts))
	for i, p := range parts {
		bt[i] = p
	}

	rctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	var body any
	if len(payload) > 0 {
		body = payload
	}
	reply, err := m.conn.RequestWait(rctx, m.conn.NewMessage(bt, body, false))
	var out any
	if err != nil {
		out = map[string]any{"ok": false, "error": "timeout"}
	} else {
		out = reply.Payload
	}
	m.publish(topic+"/reply", false, rest, out)
}

// isControl matches uartbridge/<port>/ctl/<verb>.
func isControl(t bus.Topic) bool {
	return t.Len() == 4 && t.At(2) == "ctl"
}

var errPublishTimeout = errors.New("mqtt: publish timeout")

func wait(tok mqtt.Token, d time.Duration) error {
	if !tok.WaitTimeout(d) {
		return errPublishTimeout
	}
	return tok.Error()
}
