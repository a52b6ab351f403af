//go:build rp2040

// Command pico-sc16 runs the bridge service on a Pico with an SC16IS752 on
// I2C0 and relays channel A to the Pico's own UART0.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"uartbridge-go/bus"
	"uartbridge-go/drivers/sc16is7x2"
	"uartbridge-go/services/config"
	"uartbridge-go/services/uartbridge"
	"uartbridge-go/types"
	"uartbridge-go/x/conv"
)

const (
	pinSDA = machine.Pin(4)
	pinSCL = machine.Pin(5)
	pinTX  = machine.Pin(0)
	pinRX  = machine.Pin(1)

	relayPort = "A"
	reqWait   = 500 * time.Millisecond
)

func printTopic(prefix string, t bus.Topic) {
	print(prefix, " ")
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			print("/")
		}
		if s, ok := t.At(i).(string); ok {
			print(s)
		} else {
			print("?")
		}
	}
	println()
}

func printCount(prefix string, n int) {
	var buf [20]byte
	println(prefix, string(conv.Utoa(buf[:], uint64(n))))
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{SDA: pinSDA, SCL: pinSCL, Frequency: 400_000}); err != nil {
		println("[main] i2c0 configure failed:", err.Error())
		return
	}

	console := uartx.UART0
	_ = console.Configure(uartx.UARTConfig{BaudRate: 115200, TX: pinTX, RX: pinRX})

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")
	b := bus.NewBus(4)

	mon := b.NewConnection("monitor").Subscribe(bus.T("uartbridge", "+", "state"))
	go func() {
		for m := range mon.Channel() {
			printTopic("[monitor] <-", m.Topic)
		}
	}()

	events := make(chan types.RxEvent, 4)
	svc := uartbridge.New(b.NewConnection("uartbridge"),
		sc16is7x2.NewI2C(i2c, sc16is7x2.AddressDefault),
		uartbridge.Options{Events: events})
	svc.Start(ctx)

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	relay := b.NewConnection("relay")
	go uplink(ctx, relay, console)
	downlink(ctx, relay, console, events)
}

// downlink drains channel A into UART0 whenever the bridge reports data.
func downlink(ctx context.Context, conn *bus.Connection, out *uartx.UART, events <-chan types.RxEvent) {
	for ev := range events {
		if ev.Port != relayPort || !ev.Available {
			continue
		}
		for {
			rctx, cancel := context.WithTimeout(ctx, reqWait)
			m, err := conn.RequestWait(rctx, conn.NewMessage(uartbridge.TopicControl(relayPort, "read"), nil, false))
			cancel()
			if err != nil {
				println("[relay] read:", err.Error())
				break
			}
			r, ok := m.Payload.(types.SerialReadReply)
			if !ok || len(r.Data) == 0 {
				break
			}
			_, _ = out.Write(r.Data)
		}
	}
}

// uplink forwards bytes typed on UART0 to channel A.
func uplink(ctx context.Context, conn *bus.Connection, in *uartx.UART) {
	buf := make([]byte, sc16is7x2.FIFODepth)
	for {
		n, err := in.RecvSomeContext(ctx, buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)
		for len(data) > 0 {
			rctx, cancel := context.WithTimeout(ctx, reqWait)
			m, err := conn.RequestWait(rctx, conn.NewMessage(uartbridge.TopicControl(relayPort, "write"), types.SerialWrite{Data: data}, false))
			cancel()
			if err != nil {
				println("[relay] write:", err.Error())
				break
			}
			w, ok := m.Payload.(types.SerialWriteReply)
			if !ok {
				break
			}
			if w.Written < len(data) {
				printCount("[relay] tx fifo full, pending", len(data)-w.Written)
				time.Sleep(time.Millisecond)
			}
			data = data[w.Written:]
		}
	}
}
