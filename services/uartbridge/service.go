// Package uartbridge exposes the channels of an SC16IS7x2 dual UART on the
// bus: it opens ports from "config/uartbridge", answers control requests on
// uartbridge/<port>/ctl/<verb> and reports RX availability edges.
package uartbridge

import (
	"context"
	"sync"
	"time"

	"uartbridge-go/bus"
	"uartbridge-go/drivers/sc16is7x2"
	"uartbridge-go/errcode"
	"uartbridge-go/types"
	"uartbridge-go/x/logx"
	"uartbridge-go/x/timex"
)

const (
	retryMin = 250 * time.Millisecond
	retryMax = 5 * time.Second
)

// portOrder fixes iteration order so events of one poll come out A then B.
var portOrder = [...]string{"A", "B"}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Options struct {
	// Events receives RX availability edges. Sends block until the reader
	// takes the event or the service stops, so nothing is dropped; nil
	// disables the stream (the bus copy is always published).
	Events chan<- types.RxEvent
}

type Service struct {
	conn   *bus.Connection
	tr     sc16is7x2.Transport
	events chan<- types.RxEvent

	mu    sync.Mutex
	dev   *sc16is7x2.Device
	ports map[string]*port

	// stop cancels the current worker and waits for it. Run goroutine only.
	stop func()
}

type port struct {
	set types.PortSettings
	ch  *sc16is7x2.Channel
}

func New(conn *bus.Connection, tr sc16is7x2.Transport, opts Options) *Service {
	return &Service{conn: conn, tr: tr, events: opts.Events}
}

// Start runs the service in a goroutine until ctx is cancelled.
func (s *Service) Start(ctx context.Context) { go s.Run(ctx) }

// Run blocks until ctx is cancelled. It listens for configuration on
// "config/uartbridge" and serves control requests for open ports.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	ctlSub := s.conn.Subscribe(ctlWildcard())
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctlSub)

	s.publishBridgeState(types.LevelIdle, "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.publishBridgeState(types.LevelStopped, "context_cancelled", nil)
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishBridgeState(types.LevelError, "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err == nil {
				err = cfg.Normalize()
			}
			if err != nil {
				s.publishBridgeState(types.LevelError, "config_invalid", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		case msg, ok := <-ctlSub.Channel():
			if !ok {
				return
			}
			s.handleControl(msg)
		}
	}
}

// Device returns the controller built from the current configuration.
func (s *Service) Device() *sc16is7x2.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev
}

// reconfigure replaces the controller and every open port. Ports are closed
// before the new configuration is applied.
func (s *Service) reconfigure(parent context.Context, cfg types.BridgeConfig) {
	s.shutdown()

	dev := sc16is7x2.New(s.tr, sc16is7x2.Config{
		OscillatorHz:  cfg.OscillatorHz,
		SharedBusLock: cfg.SharedBusLock,
	})
	s.mu.Lock()
	s.dev = dev
	s.ports = map[string]*port{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.stop = func() {
		cancel()
		<-done
	}
	go func() {
		defer close(done)
		s.runWorker(ctx, dev, cfg)
	}()
}

func (s *Service) shutdown() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.mu.Lock()
	ports := s.ports
	s.ports = nil
	s.mu.Unlock()

	for _, key := range portOrder {
		p := ports[key]
		if p == nil {
			continue
		}
		_ = p.ch.Close()
		s.publishPortState(key, types.PortState{Level: types.LevelStopped, Status: "closed"})
	}
}

// -----------------------------------------------------------------------------
// Worker: probe, open, watch
// -----------------------------------------------------------------------------

func (s *Service) runWorker(ctx context.Context, dev *sc16is7x2.Device, cfg types.BridgeConfig) {
	backoff := backoffSeq(retryMin, retryMax)
	for {
		err := dev.Probe()
		if err == nil {
			break
		}
		if !retryable(err) {
			s.publishBridgeState(types.LevelError, string(errcode.Of(err)), err)
			return
		}
		delay := backoff()
		s.publishBridgeState(types.LevelDegraded, "probe_failed_retrying", err)
		logx.Logf("[uartbridge] probe failed: %v (retry in %s)", err, delay)
		if !sleep(ctx, delay) {
			return
		}
	}
	s.publishBridgeState(types.LevelUp, "detected", nil)

	var pending []types.PortSettings
	for _, ps := range cfg.Ports {
		if !ps.Disabled {
			pending = append(pending, ps)
		}
	}
	backoff = backoffSeq(retryMin, retryMax)
	for len(pending) > 0 {
		var again []types.PortSettings
		for _, ps := range pending {
			if err := s.openPort(dev, ps); err != nil && retryable(err) {
				again = append(again, ps)
			}
		}
		if pending = again; len(pending) == 0 {
			break
		}
		if !sleep(ctx, backoff()) {
			return
		}
	}

	s.watch(ctx, timex.Ms(cfg.PollMs))
}

func (s *Service) openPort(dev *sc16is7x2.Device, ps types.PortSettings) error {
	name := portName(dev, ps)
	pc := portConfig(ps)

	var (
		ch  *sc16is7x2.Channel
		err error
	)
	if ps.RS485 {
		ch, err = dev.CreateRS485SerialPort(name, pc)
	} else {
		ch, err = dev.CreateSerialPort(name, pc)
	}
	if err != nil {
		level := types.LevelError
		if retryable(err) {
			level = types.LevelDegraded
		}
		s.publishPortState(ps.Port, types.PortState{
			Level:  level,
			Status: string(errcode.Of(err)),
			Baud:   ps.Baud,
			Error:  err.Error(),
		})
		logx.Logf("[uartbridge] open %s failed: %v", ps.Port, err)
		return err
	}

	s.mu.Lock()
	s.ports[ps.Port] = &port{set: ps, ch: ch}
	s.mu.Unlock()

	s.publishPortState(ps.Port, types.PortState{
		Level:        types.LevelUp,
		Status:       "open",
		Baud:         ps.Baud,
		AchievedBaud: ch.AchievedBaud(),
	})
	logx.Logf("[uartbridge] %s (%s) open at %d baud", ps.Port, ch.Name(), ch.AchievedBaud())
	return nil
}

func (s *Service) lookup(key string) *port {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ports[key]
}

// -----------------------------------------------------------------------------
// State publication
// -----------------------------------------------------------------------------

func (s *Service) publishBridgeState(level, status string, err error) {
	st := types.BridgeState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicBridgeState(), st, true))
}

func (s *Service) publishPortState(key string, st types.PortState) {
	st.TS = timex.NowMs()
	s.conn.Publish(s.conn.NewMessage(topicPortState(key), st, true))
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
