package web

import (
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("info", "hello")

	evt := receive(t, ch)
	want := StatusEvent{Time: "2024-05-01T12:00:00Z", Level: "info", Msg: "hello"}
	if evt != want {
		t.Errorf("event = %+v, want %+v", evt, want)
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()
	if b.Clients() != 2 {
		t.Errorf("Clients = %d, want 2", b.Clients())
	}

	b.Broadcast("info", "multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Msg != "multi" {
			t.Errorf("subscriber %d: msg = %q, want \"multi\"", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if b.Clients() != 0 {
		t.Errorf("Clients = %d after unsubscribe", b.Clients())
	}
	b.Broadcast("info", "after unsub")
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Broadcast("info", "fill")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered %d messages, want %d", got, subscriberBuffer)
	}
}

func TestBroadcastWriter(t *testing.T) {
	cases := []struct {
		in        string
		wantMsg   string
		wantLevel string
	}{
		{"  trimmed message  \n", "trimmed message", "info"},
		{"[Turret] 12:00:00 [ERROR] camera gone\n", "[Turret] 12:00:00 [ERROR] camera gone", "error"},
	}
	for _, tc := range cases {
		b := NewStatusBroadcaster()
		ch, unsub := b.Subscribe()
		n, err := BroadcastWriter(b).Write([]byte(tc.in))
		if err != nil || n != len(tc.in) {
			t.Errorf("Write(%q) = %d, %v", tc.in, n, err)
		}
		evt := receive(t, ch)
		if evt.Msg != tc.wantMsg || evt.Level != tc.wantLevel {
			t.Errorf("Write(%q) broadcast %+v", tc.in, evt)
		}
		unsub()
	}
}

func TestBroadcastWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	BroadcastWriter(b).Write([]byte("   \n"))

	select {
	case msg := <-ch:
		t.Errorf("unexpected message %q for whitespace-only write", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
