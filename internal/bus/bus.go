// Package bus is the ordered event channel between the radio driver's
// callback goroutines and the single consumer goroutine. Every
// subscriber sees events in publish order; one tick is processed at a
// time on the consumer side.
package bus

import (
	"sync"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

// RangingTick is one reporting cycle from the radio driver with the
// beacons currently visible in the given region.
type RangingTick struct {
	Region  string
	Beacons []*models.Observation
}

// BluetoothState signals the radio adapter being switched on or off.
type BluetoothState struct {
	Enabled bool
}

type subscriber struct {
	id int
	ch chan interface{}
}

type Bus struct {
	logger zerolog.Logger

	mu     sync.Mutex
	subs   []*subscriber
	nextID int
	closed bool
}

const subscriberBuffer = 256

func New(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Publish delivers the event to every subscriber. Delivery order
// matches publish order; a subscriber that has fallen behind by more
// than its buffer drops the event rather than blocking the producer.
func (b *Bus) Publish(event interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn().
				Int("subscriber", sub.id).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with a cancel function. Cancelling twice is safe.
func (b *Bus) Subscribe() (<-chan interface{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		id: b.nextID,
		ch: make(chan interface{}, subscriberBuffer),
	}
	b.nextID++

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	b.subs = append(b.subs, sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(sub)
		})
	}
	return sub.ch, cancel
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close tears the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
