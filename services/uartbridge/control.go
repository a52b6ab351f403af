package uartbridge

import (
	"uartbridge-go/bus"
	"uartbridge-go/drivers/sc16is7x2"
	"uartbridge-go/errcode"
	"uartbridge-go/types"
	"uartbridge-go/x/logx"
	"uartbridge-go/x/mathx"
)

func (s *Service) handleControl(msg *bus.Message) {
	// uartbridge/<port>/ctl/<verb>
	if msg.Topic.Len() != 4 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	key, _ := msg.Topic.At(1).(string)
	verb, _ := msg.Topic.At(3).(string)

	p := s.lookup(key)
	if p == nil {
		if key != "A" && key != "B" {
			s.replyErr(msg, errcode.UnknownPort)
		} else {
			s.replyErr(msg, errcode.NotConfigured)
		}
		return
	}

	res, err := s.control(key, p, verb, msg.Payload)
	if err != nil {
		s.replyErr(msg, errcode.Of(err))
		return
	}
	if msg.CanReply() {
		s.conn.Reply(msg, res, false)
	}
}

func (s *Service) control(key string, p *port, verb string, payload any) (any, error) {
	switch verb {
	case "write":
		data, err := writeData(payload)
		if err != nil {
			return nil, err
		}
		n, err := p.ch.WriteAvailable(data)
		if err != nil {
			return nil, err
		}
		return types.SerialWriteReply{OK: true, Written: n}, nil

	case "read":
		var req types.SerialRead
		if err := decodeInto(payload, &req); err != nil {
			return nil, err
		}
		max := req.Max
		if max <= 0 {
			max = p.ch.ReadBufferSize()
		}
		buf := make([]byte, mathx.Clamp(max, 1, sc16is7x2.FIFODepth))
		n, err := p.ch.ReadAvailable(buf)
		if err != nil {
			return nil, err
		}
		return types.SerialReadReply{OK: true, Data: buf[:n]}, nil

	case "fifo":
		rx, err := p.ch.ReadFIFOCount()
		if err != nil {
			return nil, err
		}
		tx, err := p.ch.WriteFIFOSpace()
		if err != nil {
			return nil, err
		}
		return types.SerialFIFOReply{OK: true, RX: rx, TXSpace: tx}, nil

	case "reset_fifo":
		var req types.SerialResetFIFO
		if err := decodeInto(payload, &req); err != nil {
			return nil, err
		}
		if !req.RX && !req.TX {
			req.RX, req.TX = true, true
		}
		if req.RX {
			if err := p.ch.ResetReadFIFO(); err != nil {
				return nil, err
			}
		}
		if req.TX {
			if err := p.ch.ResetWriteFIFO(); err != nil {
				return nil, err
			}
		}
		return types.OKReply{OK: true}, nil

	case "reset":
		// The soft reset returns both UARTs to their defaults; program every
		// open port again.
		if err := p.ch.ResetChannel(); err != nil {
			return nil, err
		}
		for _, other := range portOrder {
			q := s.lookup(other)
			if other == key || q == nil {
				continue
			}
			if _, err := s.reprogram(other, q, q.set); err != nil {
				logx.Logf("[uartbridge] reprogram %s after reset: %v", other, err)
			}
		}
		return s.reprogram(key, p, p.set)

	case "configure":
		ps := p.set
		if err := decodeInto(payload, &ps); err != nil {
			return nil, err
		}
		if ps.Port == "" {
			ps.Port = key
		}
		if err := ps.Normalize(); err != nil {
			return nil, err
		}
		if ps.Port != key || ps.RS485 != p.set.RS485 {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: key, Msg: "port and rs485 are fixed while open"}
		}
		return s.reprogram(key, p, ps)

	case "info":
		return info(key, p), nil
	}
	return nil, errcode.Unsupported
}

// reprogram applies ps to an open port and republishes its state. Control
// requests are served from the Run goroutine, the only writer of p.set.
func (s *Service) reprogram(key string, p *port, ps types.PortSettings) (any, error) {
	achieved, err := p.ch.Configure(portConfig(ps))
	if err != nil {
		if errcode.Of(err) == errcode.Error {
			s.publishPortState(key, types.PortState{
				Level:  types.LevelDegraded,
				Status: "configure_failed",
				Baud:   ps.Baud,
				Error:  err.Error(),
			})
		}
		return nil, err
	}
	p.set = ps
	s.publishPortState(key, types.PortState{
		Level:        types.LevelUp,
		Status:       "open",
		Baud:         ps.Baud,
		AchievedBaud: achieved,
	})
	return info(key, p), nil
}

func info(key string, p *port) types.SerialInfo {
	return types.SerialInfo{
		Port:         key,
		Name:         p.ch.Name(),
		RS485:        p.ch.RS485(),
		Baud:         p.set.Baud,
		AchievedBaud: p.ch.AchievedBaud(),
		DataBits:     p.set.DataBits,
		Parity:       p.set.ParityValue(),
		StopBits:     p.set.StopBits,
	}
}

func (s *Service) replyErr(m *bus.Message, code errcode.Code) {
	if !m.CanReply() {
		return
	}
	if code == "" {
		code = errcode.Error
	}
	s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
}

