package uartbridge

import (
	"context"
	"time"

	"uartbridge-go/errcode"
	"uartbridge-go/types"
	"uartbridge-go/x/logx"
	"uartbridge-go/x/timex"
)

// watch polls the RX level of every open port and emits an RxEvent when
// data availability changes. One goroutine emits for all ports, so events of
// a port keep their order.
func (s *Service) watch(ctx context.Context, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()

	var (
		avail   = map[string]bool{}
		failing = map[string]bool{}
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		for _, key := range portOrder {
			p := s.lookup(key)
			if p == nil {
				continue
			}
			n, err := p.ch.ReadFIFOCount()
			if err != nil {
				if !failing[key] {
					failing[key] = true
					logx.Logf("[uartbridge] poll %s: %v", key, err)
					s.publishPortState(key, types.PortState{
						Level:  types.LevelDegraded,
						Status: string(errcode.Of(err)),
						Baud:   p.set.Baud,
						Error:  err.Error(),
					})
				}
				continue
			}
			if failing[key] {
				failing[key] = false
				s.publishPortState(key, types.PortState{
					Level:        types.LevelUp,
					Status:       "open",
					Baud:         p.set.Baud,
					AchievedBaud: p.ch.AchievedBaud(),
				})
			}
			now := n > 0
			if now == avail[key] {
				continue
			}
			avail[key] = now
			ev := types.RxEvent{Port: key, Available: now, Count: n, TS: timex.NowMs()}
			if !s.emit(ctx, ev) {
				return
			}
		}
	}
}

// emit mirrors ev on the bus and hands it to the Events channel. It returns
// false when ctx ended first.
func (s *Service) emit(ctx context.Context, ev types.RxEvent) bool {
	s.conn.Publish(s.conn.NewMessage(topicRxEvent(ev.Port), ev, false))
	if s.events == nil {
		return true
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
