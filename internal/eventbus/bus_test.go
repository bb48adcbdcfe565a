package eventbus

import (
	"testing"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(Event{Type: TriggerFired, TriggerID: 7, Trigger: "tick"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		e := <-ch
		if e.Type != TriggerFired || e.TriggerID != 7 || e.Time.IsZero() {
			t.Fatalf("subscriber %d got %+v", i, e)
		}
	}

	unsub1()
	unsub1()
	if _, ok := <-ch1; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Type: TriggerFailed})
	if e := <-ch2; e.Type != TriggerFailed {
		t.Fatalf("got %+v", e)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	if e := <-ch; e.Type != "a" {
		t.Fatalf("got %q, want a", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}
