package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"uartbridge-go/bus"
	"uartbridge-go/services/config"
	"uartbridge-go/services/uartbridge"
	"uartbridge-go/types"
)

const helpText = `commands:
  open <A|B> [baud] [bits] [N|E|O] [1|2]   open or reconfigure a port
  rs485 <A|B> [baud] [bits] [N|E|O] [1|2]  open with RS-485 direction control
  close <A|B>                               release a port
  write <A|B> <text>                        queue text in the TX FIFO
  read <A|B>                                drain the RX FIFO
  fifo <A|B>                                show FIFO levels
  reset <A|B>                               soft-reset and reprogram a port
  info <A|B>                                show port settings
  quit`

var errUsage = errors.New("usage error, try help")

type console struct {
	conn    *bus.Connection
	cfg     types.BridgeConfig
	out     io.Writer
	timeout time.Duration
}

func newConsole(conn *bus.Connection, cfg types.BridgeConfig, out io.Writer) *console {
	return &console{conn: conn, cfg: cfg, out: out, timeout: 2 * time.Second}
}

// run reads commands until quit, EOF or ctx.
func (c *console) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	fmt.Fprintln(c.out, "sc16ctl ready, type help")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			args, err := shlex.Split(line)
			if err != nil {
				fmt.Fprintln(c.out, "parse:", err)
				continue
			}
			quit, err := c.exec(ctx, args)
			if err != nil {
				fmt.Fprintln(c.out, "error:", err)
			}
			if quit {
				return
			}
		}
	}
}

// watch prints RX events and bridge state changes.
func (c *console) watch(ctx context.Context, events <-chan types.RxEvent) {
	states := c.conn.Subscribe(uartbridge.TopicBridgeState())
	defer c.conn.Unsubscribe(states)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Available {
				fmt.Fprintf(c.out, "rx %s: %d byte(s) waiting\n", ev.Port, ev.Count)
			}
		case m := <-states.Channel():
			if st, ok := m.Payload.(types.BridgeState); ok {
				fmt.Fprintf(c.out, "bridge %s (%s) %s\n", st.Level, st.Status, st.Error)
			}
		}
	}
}

func (c *console) exec(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(args[0])
	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
		return false, nil
	}
	if len(args) < 2 {
		return false, errUsage
	}
	port := strings.ToUpper(args[1])

	switch cmd {
	case "open", "rs485":
		ps, err := parsePort(port, args[2:])
		if err != nil {
			return false, err
		}
		ps.RS485 = cmd == "rs485"
		return false, c.apply(ps)
	case "close":
		return false, c.apply(types.PortSettings{Port: port, Disabled: true})
	case "write":
		if len(args) < 3 {
			return false, errUsage
		}
		text := strings.Join(args[2:], " ")
		r, err := c.request(ctx, port, "write", types.SerialWrite{Text: text})
		if err != nil {
			return false, err
		}
		if w, ok := r.(types.SerialWriteReply); ok {
			fmt.Fprintf(c.out, "wrote %d/%d\n", w.Written, len(text))
		}
	case "read":
		r, err := c.request(ctx, port, "read", nil)
		if err != nil {
			return false, err
		}
		if rd, ok := r.(types.SerialReadReply); ok {
			fmt.Fprintf(c.out, "%q\n", rd.Data)
		}
	case "fifo":
		r, err := c.request(ctx, port, "fifo", nil)
		if err != nil {
			return false, err
		}
		if f, ok := r.(types.SerialFIFOReply); ok {
			fmt.Fprintf(c.out, "rx %d, tx space %d\n", f.RX, f.TXSpace)
		}
	case "reset", "info":
		r, err := c.request(ctx, port, cmd, nil)
		if err != nil {
			return false, err
		}
		if in, ok := r.(types.SerialInfo); ok {
			fmt.Fprintf(c.out, "%s %s %d baud (achieved %d) %d%s%d rs485=%v\n",
				in.Port, in.Name, in.Baud, in.AchievedBaud, in.DataBits,
				strings.ToUpper(in.Parity.String()[:1]), in.StopBits, in.RS485)
		}
	default:
		return false, errUsage
	}
	return false, nil
}

// apply replaces the entry for ps.Port and republishes the bridge config.
// The service reopens every port on a new config.
func (c *console) apply(ps types.PortSettings) error {
	if err := ps.Normalize(); err != nil {
		return err
	}
	next := c.cfg
	next.Ports = nil
	replaced := false
	for _, p := range c.cfg.Ports {
		if p.Port == ps.Port {
			p, replaced = ps, true
		}
		next.Ports = append(next.Ports, p)
	}
	if !replaced {
		next.Ports = append(next.Ports, ps)
	}
	c.cfg = next
	config.PublishBridge(c.conn, next)
	return nil
}

func (c *console) request(ctx context.Context, port, verb string, payload any) (any, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	reply, err := c.conn.RequestWait(rctx, c.conn.NewMessage(uartbridge.TopicControl(port, verb), payload, false))
	if err != nil {
		return nil, err
	}
	if e, ok := reply.Payload.(types.ErrorReply); ok {
		return nil, errors.New(e.Error)
	}
	return reply.Payload, nil
}

// parsePort reads [baud] [bits] [parity] [stop] in that order.
func parsePort(port string, args []string) (types.PortSettings, error) {
	ps := types.PortSettings{Port: port}
	if len(args) > 4 {
		return ps, errUsage
	}
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return ps, fmt.Errorf("baud %q: %w", args[0], err)
		}
		ps.Baud = uint32(v)
	}
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return ps, fmt.Errorf("data bits %q: %w", args[1], err)
		}
		ps.DataBits = uint8(v)
	}
	if len(args) > 2 {
		ps.Parity = args[2]
	}
	if len(args) > 3 {
		v, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			return ps, fmt.Errorf("stop bits %q: %w", args[3], err)
		}
		ps.StopBits = uint8(v)
	}
	return ps, nil
}
