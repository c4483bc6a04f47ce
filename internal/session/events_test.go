package session

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Kind: EventSessionOutput, SessionID: "s1", Data: []byte("hi")})

	select {
	case e := <-ch:
		if e.SessionID != "s1" || string(e.Data) != "hi" {
			t.Fatalf("got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusPreservesPerSessionOrdering(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Kind: EventSessionOutput, SessionID: "s1", Data: []byte{byte(i)}})
	}

	for i := 0; i < 5; i++ {
		select {
		case e := <-ch:
			if e.Data[0] != byte(i) {
				t.Fatalf("event %d: data = %v, want %v", i, e.Data, []byte{byte(i)})
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusDropsOldestAndSignalsLagWhenSubscriberFallsBehind(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe()
	defer unsub()

	total := subscriberBufferSize + 10
	for i := 0; i < total; i++ {
		b.Publish(Event{Kind: EventSessionOutput, SessionID: "s1", Data: []byte{byte(i % 256)}})
	}

	sawLag := false
	drained := 0
	for {
		select {
		case e := <-ch:
			drained++
			if e.Kind == EventSubscriberLag {
				sawLag = true
			}
		case <-time.After(100 * time.Millisecond):
			if !sawLag {
				t.Fatalf("expected at least one subscriber_lag event after overflowing the buffer")
			}
			if drained == 0 {
				t.Fatalf("expected some events to still be delivered")
			}
			return
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe()
	unsub()
	_, ok := <-ch
	if ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
}
