package bus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

func TestPublishPreservesOrder(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	events, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish(BluetoothState{Enabled: i%2 == 0})
	}

	for i := 0; i < 10; i++ {
		select {
		case e := <-events:
			state, ok := e.(BluetoothState)
			if !ok {
				t.Fatalf("unexpected event type %T", e)
			}
			if state.Enabled != (i%2 == 0) {
				t.Fatalf("event %d out of order", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestAllSubscribersReceiveEvents(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	first, cancelFirst := b.Subscribe()
	defer cancelFirst()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	tick := RangingTick{
		Region:  "test-region",
		Beacons: []*models.Observation{{Address: "AA:BB:CC:DD:EE:FF"}},
	}
	b.Publish(tick)

	for name, ch := range map[string]<-chan interface{}{"first": first, "second": second} {
		select {
		case e := <-ch:
			got, ok := e.(RangingTick)
			if !ok {
				t.Fatalf("%s subscriber: unexpected event type %T", name, e)
			}
			if got.Region != "test-region" || len(got.Beacons) != 1 {
				t.Fatalf("%s subscriber: unexpected event %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber never received the event", name)
		}
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	events, cancel := b.Subscribe()
	cancel()
	cancel() // cancelling twice is safe

	b.Publish(BluetoothState{Enabled: true})

	select {
	case _, open := <-events:
		if open {
			t.Fatalf("cancelled subscriber received an event")
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled subscriber channel was not closed")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New(zerolog.Nop())
	b.Close()
	b.Close() // closing twice is safe

	b.Publish(BluetoothState{Enabled: true})

	events, cancel := b.Subscribe()
	defer cancel()
	if _, open := <-events; open {
		t.Fatalf("subscription on a closed bus should be closed immediately")
	}
}
