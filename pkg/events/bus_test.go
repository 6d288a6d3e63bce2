package events

import (
	"testing"

	"github.com/picogrid/utm-core/pkg/models"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish(models.Event{Kind: models.EventVehicleUpdated})

	select {
	case ev := <-ch:
		if ev.Kind != models.EventVehicleUpdated {
			t.Errorf("expected VehicleUpdated, got %s", ev.Kind)
		}
	default:
		t.Fatal("expected an event to be immediately available")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish(models.Event{Kind: models.EventMissionCreated})

	if (<-ch1).Kind != models.EventMissionCreated {
		t.Error("expected subscriber 1 to receive the event")
	}
	if (<-ch2).Kind != models.EventMissionCreated {
		t.Error("expected subscriber 2 to receive the event")
	}
}

func TestPublishDropsOldestWhenBufferFull(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	// Fill the subscriber's buffer, then publish one more: the oldest
	// event should be dropped rather than blocking the publisher.
	for i := 0; i < defaultSubscriberBuffer; i++ {
		b.Publish(models.Event{Kind: models.EventVehicleUpdated})
	}
	b.Publish(models.Event{Kind: models.EventConflictDetected})

	drained := 0
	var last models.Event
	for {
		select {
		case ev := <-ch:
			last = ev
			drained++
		default:
			if drained != defaultSubscriberBuffer {
				t.Errorf("expected exactly %d buffered events, got %d", defaultSubscriberBuffer, drained)
			}
			if last.Kind != models.EventConflictDetected {
				t.Errorf("expected the most recent publish to survive, got %v", last.Kind)
			}
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}
}
