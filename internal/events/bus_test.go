package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus(Options{})
	ch, cancel := bus.Subscribe(context.Background())
	defer cancel()

	if err := bus.Publish(context.Background(), TypeProfileCreated, map[string]interface{}{"profileId": 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-ch:
		if evt.Type != TypeProfileCreated || evt.ID == "" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		data, ok := evt.Data.(map[string]interface{})
		if !ok || data["profileId"] != 1 {
			t.Fatalf("unexpected event data: %+v", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	t.Parallel()

	bus := NewBus(Options{})
	ch, cancel := bus.Subscribe(context.Background())
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	// A publish after cancel must not panic or block.
	if err := bus.Publish(context.Background(), TypeConfigUpdated, nil); err != nil {
		t.Fatalf("Publish after cancel: %v", err)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	bus := NewBus(Options{})
	_, cancel := bus.Subscribe(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = bus.Publish(context.Background(), TypeChatCompleted, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}
