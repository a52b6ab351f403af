package bus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
)

// portState stands in for the retained per-port state payload.
type portState struct {
	Level string
	Baud  uint32
}

// split turns "a/b/c" into a topic of string tokens.
func split(s string) Topic {
	var t Topic
	for _, tok := range strings.Split(s, "/") {
		t = append(t, tok)
	}
	return t
}

// pending returns what is queued on sub right now. Publish delivers
// synchronously, so no waiting is needed.
func pending(sub *Subscription) []*Message {
	var out []*Message
	for {
		select {
		case m, ok := <-sub.Channel():
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func topics(ms []*Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Topic.String())
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Matching
// -----------------------------------------------------------------------------

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"config/uartbridge", "config/uartbridge", true},
		{"config/uartbridge", "config/mode", false},
		{"uartbridge/+/ctl/+", "uartbridge/A/ctl/write", true},
		{"uartbridge/+/ctl/+", "uartbridge/B/ctl/reset_fifo", true},
		{"uartbridge/+/ctl/+", "uartbridge/A/state", false},
		{"uartbridge/+/ctl/+", "uartbridge/A/ctl", false},
		{"uartbridge/+/state", "uartbridge/B/state", true},
		{"uartbridge/+/state", "uartbridge/state", false},
		{"uartbridge/+/event/rx", "uartbridge/A/event/rx", true},
		{"uartbridge/A/#", "uartbridge/B/state", false},
		{"uartbridge/A/#", "uartbridge/A/event/rx", true},
		{"uartbridge/#", "uartbridge", true},
		{"uartbridge/#", "uartbridge/state", true},
		{"#", "config/uartbridge", true},
		{"+", "uartbridge/state", false},
	}
	for _, tc := range cases {
		b := NewBus(4)
		c := b.NewConnection("test")
		sub := c.Subscribe(split(tc.pattern))
		c.Publish(b.NewMessage(split(tc.topic), "x", false))

		got := len(pending(sub)) == 1
		if got != tc.want {
			t.Fatalf("%s vs %s: matched=%v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestMatch_OverlappingSubscriptionsEachGetOneCopy(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")
	subs := []*Subscription{
		c.Subscribe(split("uartbridge/#")),
		c.Subscribe(split("uartbridge/+/event/+")),
		c.Subscribe(split("uartbridge/A/event/rx")),
		c.Subscribe(split("#")),
	}
	c.Publish(b.NewMessage(split("uartbridge/A/event/rx"), "edge", false))
	for _, s := range subs {
		if n := len(pending(s)); n != 1 {
			t.Fatalf("%v got %d copies", s.Topic(), n)
		}
	}
}

// -----------------------------------------------------------------------------
// Retained messages
// -----------------------------------------------------------------------------

func TestRetained_LatestConfigReplayed(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("config")
	c.Publish(b.NewMessage(split("config/uartbridge"), map[string]any{"poll_ms": 10.0}, true))
	c.Publish(b.NewMessage(split("config/uartbridge"), map[string]any{"poll_ms": 20.0}, true))

	late := b.NewConnection("uartbridge").Subscribe(split("config/uartbridge"))
	got := pending(late)
	if len(got) != 1 {
		t.Fatalf("replayed %d messages, want 1", len(got))
	}
	if !got[0].Retained || got[0].Payload.(map[string]any)["poll_ms"] != 20.0 {
		t.Fatalf("replayed %+v", got[0])
	}
}

func TestRetained_PortStateReplayAndClear(t *testing.T) {
	b := NewBus(8)
	svc := b.NewConnection("uartbridge")
	svc.Publish(b.NewMessage(split("uartbridge/state"), "up", true))
	svc.Publish(b.NewMessage(split("uartbridge/A/state"), portState{"up", 115200}, true))
	svc.Publish(b.NewMessage(split("uartbridge/B/state"), portState{"up", 9600}, true))
	svc.Publish(b.NewMessage(split("uartbridge/A/event/rx"), "not kept", false))

	c := b.NewConnection("watcher")
	cases := []struct {
		pattern string
		want    []string
	}{
		{"uartbridge/+/state", []string{"uartbridge/A/state", "uartbridge/B/state"}},
		{"uartbridge/#", []string{"uartbridge/A/state", "uartbridge/B/state", "uartbridge/state"}},
		{"uartbridge/B/#", []string{"uartbridge/B/state"}},
		{"uartbridge/+/event/rx", nil},
	}
	for _, tc := range cases {
		got := topics(pending(c.Subscribe(split(tc.pattern))))
		sort.Strings(tc.want)
		if !equal(got, tc.want) {
			t.Fatalf("%s replayed %v, want %v", tc.pattern, got, tc.want)
		}
	}

	// A nil retained payload clears the stored state.
	svc.Publish(b.NewMessage(split("uartbridge/B/state"), nil, true))
	got := pending(c.Subscribe(split("uartbridge/+/state")))
	if len(got) != 1 || got[0].Payload.(portState).Baud != 115200 {
		t.Fatalf("after clear: %v", topics(got))
	}
	if got := pending(c.Subscribe(split("uartbridge/B/state"))); len(got) != 0 {
		t.Fatal("cleared state still replayed")
	}
}

func TestRetained_ClearUnknownTopicIsNoop(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	c.Publish(b.NewMessage(split("uartbridge/C/state"), nil, true))
	if got := pending(c.Subscribe(split("#"))); len(got) != 0 {
		t.Fatalf("replayed %v", topics(got))
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// serveControl answers every uartbridge/<port>/ctl/<verb> request with
// "<port>:<verb>".
func serveControl(t *testing.T, b *Bus) {
	t.Helper()
	conn := b.NewConnection("uartbridge")
	sub := conn.Subscribe(split("uartbridge/+/ctl/+"))
	t.Cleanup(conn.Disconnect)
	go func() {
		for m := range sub.Channel() {
			port, _ := m.Topic.At(1).(string)
			verb, _ := m.Topic.At(3).(string)
			conn.Reply(m, port+":"+verb, false)
		}
	}()
}

func TestRequestWait_ControlVerb(t *testing.T) {
	b := NewBus(8)
	serveControl(t, b)
	console := b.NewConnection("console")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, verb := range []string{"fifo", "read", "write"} {
		req := console.NewMessage(split("uartbridge/B/ctl/"+verb), nil, false)
		reply, err := console.RequestWait(ctx, req)
		if err != nil {
			t.Fatalf("%s: %v", verb, err)
		}
		if reply.Payload != "B:"+verb {
			t.Fatalf("%s: reply %v", verb, reply.Payload)
		}
		if reply.Topic.String() != req.ReplyTo.String() {
			t.Fatalf("reply on %v, want %v", reply.Topic, req.ReplyTo)
		}
		if req.ReplyTo.At(0) != "_reply" || req.ReplyTo.At(1) != "console" {
			t.Fatalf("ReplyTo = %v", req.ReplyTo)
		}
	}
}

func TestRequest_ConcurrentRepliesDoNotCross(t *testing.T) {
	b := NewBus(8)
	serveControl(t, b)
	console := b.NewConnection("console")

	ra := console.Request(console.NewMessage(split("uartbridge/A/ctl/info"), nil, false))
	rb := console.Request(console.NewMessage(split("uartbridge/B/ctl/info"), nil, false))
	defer console.Unsubscribe(ra)
	defer console.Unsubscribe(rb)

	for sub, want := range map[*Subscription]string{ra: "A:info", rb: "B:info"} {
		select {
		case m := <-sub.Channel():
			if m.Payload != want {
				t.Fatalf("got %v, want %s", m.Payload, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no reply for %s", want)
		}
	}
	if ra.Topic().String() == rb.Topic().String() {
		t.Fatal("two requests share a reply topic")
	}
}

func TestRequestWait_NoResponder(t *testing.T) {
	b := NewBus(4)
	console := b.NewConnection("console")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := console.RequestWait(ctx, console.NewMessage(split("uartbridge/A/ctl/fifo"), nil, false))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestReply_WithoutReplyToIsIgnored(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	all := c.Subscribe(split("#"))
	c.Reply(b.NewMessage(split("uartbridge/A/event/rx"), nil, false), "r", false)
	if got := pending(all); len(got) != 0 {
		t.Fatalf("unexpected %v", topics(got))
	}
}

// -----------------------------------------------------------------------------
// Delivery and lifecycle
// -----------------------------------------------------------------------------

func TestDeliver_SlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(split("uartbridge/A/event/rx"))

	for _, p := range []string{"e1", "e2", "e3"} {
		c.Publish(b.NewMessage(split("uartbridge/A/event/rx"), p, false))
	}
	got := pending(s)
	if len(got) != 2 || got[0].Payload != "e2" || got[1].Payload != "e3" {
		t.Fatalf("queued %d, want e2 e3", len(got))
	}
}

func TestUnsubscribe_TwiceIsSafe(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(split("uartbridge/state"))
	c.Unsubscribe(s)
	s.Unsubscribe()
	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel still open")
	}
	c.Publish(b.NewMessage(split("uartbridge/state"), "late", false))
}

func TestDisconnect_ClosesEverySubscription(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("console")
	s1 := c.Subscribe(split("uartbridge/state"))
	s2 := c.Subscribe(split("uartbridge/+/event/rx"))
	c.Disconnect()
	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.Channel(); ok {
			t.Fatalf("%v still open", s.Topic())
		}
	}
	// Publishing after disconnect reaches nobody and does not panic.
	b.NewConnection("other").Publish(b.NewMessage(split("uartbridge/state"), "x", false))
}

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

func TestT_RejectsNonComparableTokens(t *testing.T) {
	for _, tok := range []any{[]byte{1}, map[string]int{}, nil} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("T(%T) did not panic", tok)
				}
			}()
			_ = T("uartbridge", tok)
		}()
	}
}

func TestTopic_StringAndAppend(t *testing.T) {
	if got := T("uartbridge", "A", "ctl", "write").String(); got != "uartbridge/A/ctl/write" {
		t.Fatalf("String = %q", got)
	}
	if got := T("_reply", "console", 7).String(); got != "_reply/console/7" {
		t.Fatalf("String = %q", got)
	}
	base := T("uartbridge", "A")
	ext := base.Append("event", "rx")
	if base.Len() != 2 || ext.Len() != 4 || ext.At(3) != "rx" {
		t.Fatalf("Append: base %v ext %v", base, ext)
	}
}
