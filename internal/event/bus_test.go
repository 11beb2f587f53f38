package event

import (
	"context"
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus[string](context.Background(), BusOptions{Name: "test"})
	defer bus.Close()

	output, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish("nordic")

	select {
	case value := <-output:
		if value != "nordic" {
			t.Fatalf("expected nordic, got %q", value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	defer bus.Close()

	output, cancel := bus.Subscribe()
	cancel()

	if _, ok := <-output; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
	if bus.NumSubscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", bus.NumSubscribers())
	}

	// Publishing after cancel must not panic.
	bus.Publish(1)
}

func TestBusFilteredSubscription(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	defer bus.Close()

	output, cancel := bus.SubscribeFiltered(func(value int) bool {
		return value%2 == 0
	})
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	select {
	case value := <-output:
		if value != 2 {
			t.Fatalf("expected 2, got %d", value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{SubscriberBufferSize: 1})
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.Dropped())
	}
}

func TestBusClosesWithContext(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})

	output, cancel := bus.Subscribe()
	defer cancel()

	cancelCtx()

	select {
	case _, ok := <-output:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus close")
	}
}

func TestBusCloseIsIdempotent(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	bus.Close()
	bus.Close()

	output, _ := bus.Subscribe()
	if _, ok := <-output; ok {
		t.Fatal("expected subscribe on closed bus to return closed channel")
	}
}
