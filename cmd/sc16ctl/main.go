// sc16ctl drives an SC16IS752 bridge from a host through an SC18IM700
// UART-to-I2C adapter. Configuration is read from YAML; commands come from
// stdin (see help).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uartbridge-go/bus"
	"uartbridge-go/drivers/sc16is7x2"
	"uartbridge-go/drivers/sc18im700"
	"uartbridge-go/services/config"
	"uartbridge-go/services/mqttmirror"
	"uartbridge-go/services/uartbridge"
	"uartbridge-go/types"
	"uartbridge-go/x/logx"
)

func main() {
	cfgPath := flag.String("config", "sc16ctl.yaml", "YAML configuration file")
	serialPath := flag.String("serial", "", "serial device of the SC18IM700 (overrides config)")
	quiet := flag.Bool("q", false, "mute service logs")
	flag.Parse()

	var hc hostConfig
	if err := loadFile(*cfgPath, &hc); err != nil {
		log.Fatalf("load %s: %v", *cfgPath, err)
	}
	if *serialPath != "" {
		hc.Serial = *serialPath
	}
	if err := hc.Bridge.Normalize(); err != nil {
		log.Fatalf("bridge config: %v", err)
	}
	if *quiet {
		logx.SetLogger(nil)
	}

	adapter, port, err := sc18im700.Open(sc18im700.Config{Path: hc.Serial, Baud: hc.SerialBaud})
	if err != nil {
		log.Fatalf("open %s: %v", hc.Serial, err)
	}
	defer port.Close()
	tr := sc16is7x2.NewI2C(adapter, hc.I2CAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(32)
	events := make(chan types.RxEvent, 8)
	uartbridge.New(b.NewConnection("uartbridge"), tr, uartbridge.Options{Events: events}).Start(ctx)

	if hc.MQTT.Broker != "" {
		client, err := mqttmirror.Dial(hc.MQTT.Broker, hc.MQTT.ClientID)
		if err != nil {
			log.Fatalf("mqtt %s: %v", hc.MQTT.Broker, err)
		}
		defer client.Disconnect(250)
		m := mqttmirror.New(b.NewConnection("mqtt"), client, mqttmirror.Config{Prefix: hc.MQTT.Prefix})
		go func() {
			if err := m.Run(ctx); err != nil {
				logx.Logf("[mqtt] mirror stopped: %v", err)
			}
		}()
	}

	conn := b.NewConnection("console")
	config.PublishBridge(conn, hc.Bridge)

	con := newConsole(conn, hc.Bridge, os.Stdout)
	go con.watch(ctx, events)
	con.run(ctx, os.Stdin)
}
