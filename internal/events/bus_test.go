package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishToTypedSubscriber(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(1)

	var received Event
	bus.Subscribe(EventOrderAuthorized, func(e Event) {
		received = e
		wg.Done()
	})

	bus.Publish(Event{
		Type:      EventOrderAuthorized,
		AccountID: "acct-1",
		Data:      map[string]interface{}{"order_id": "o1"},
	})

	wg.Wait()
	if received.AccountID != "acct-1" {
		t.Errorf("Expected account acct-1, got %s", received.AccountID)
	}
	if received.Timestamp.IsZero() {
		t.Error("Expected the bus to stamp a timestamp")
	}
}

func TestTypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()

	called := make(chan struct{}, 1)
	bus.Subscribe(EventOrderRejected, func(e Event) {
		called <- struct{}{}
	})

	bus.Publish(Event{Type: EventOrderAuthorized})

	select {
	case <-called:
		t.Error("Subscriber received an event of a different type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(Event{Type: EventOrderAuthorized})
	bus.Publish(Event{Type: EventPositionClosed})

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("Expected 2 events, got %d", count)
	}
}
