package events

import (
	"context"
	"testing"
)

func TestHub_DeliversToSubscribers(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(context.Background(), NewCall(42, "c42"))

	select {
	case e := <-ch:
		if e.Kind != KindNewCall {
			t.Fatalf("expected new_call, got %s", e.Kind)
		}
		p, ok := e.Payload.(NewCallPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", e.Payload)
		}
		if p.RecordID != 42 || p.ExternalID != "c42" {
			t.Fatalf("unexpected payload %+v", p)
		}
	default:
		t.Fatalf("expected a buffered event")
	}
}

func TestHub_PublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe() // never drained
	defer cancel()

	// Overflow the buffer; publish must return every time.
	for i := 0; i < subscriberBuffer*3; i++ {
		h.Publish(context.Background(), SummaryChanged())
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe()
	if h.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	cancel()
	cancel() // idempotent
	if h.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after cancel")
	}
}

func TestMulti_PublishesToAllSinks(t *testing.T) {
	h1 := NewHub(nil)
	h2 := NewHub(nil)
	ch1, cancel1 := h1.Subscribe()
	defer cancel1()
	ch2, cancel2 := h2.Subscribe()
	defer cancel2()

	Multi{h1, h2}.Publish(context.Background(), SyncComplete(3, 1))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Kind != KindSyncComplete {
				t.Fatalf("expected sync_complete, got %s", e.Kind)
			}
		default:
			t.Fatalf("expected event on every sink")
		}
	}
}
