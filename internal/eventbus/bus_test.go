package eventbus

import (
	"testing"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[model.StateChanged]()
	ch := bus.Subscribe()
	bus.Publish(model.StateChanged{Group: "1.1", To: model.LinkUp})
	ev := <-ch
	if ev.Group != "1.1" || ev.To != model.LinkUp {
		t.Fatalf("got %+v", ev)
	}
	bus.Unsubscribe(ch)
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	for i := 0; i < 100; i++ {
		bus.Publish(i)
	}
	// The subscriber buffer is finite; publishing above must not have
	// blocked, and the oldest events are still in order.
	if first := <-ch; first != 0 {
		t.Fatalf("first = %d, want 0", first)
	}
}

func TestBusClose(t *testing.T) {
	bus := New[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatal("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("expected ch2 closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New[int]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
