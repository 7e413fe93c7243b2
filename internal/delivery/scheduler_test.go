package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/config"
	"beacon-scanner/internal/models"
	"beacon-scanner/internal/prefs"
	"beacon-scanner/internal/store"
)

type fakeTransport struct {
	mu       sync.Mutex
	times    []time.Time
	requests []*models.LoggingRequest
	failures int
	onPost   func()
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeTransport) Post(ctx context.Context, endpoint string, request *models.LoggingRequest) error {
	f.mu.Lock()
	f.times = append(f.times, time.Now())
	f.requests = append(f.requests, request)
	attempt := len(f.times)
	onPost := f.onPost
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if onPost != nil {
		onPost()
	}

	if f.failures < 0 || attempt <= f.failures {
		return errors.New("collector unavailable")
	}
	return nil
}

func (f *fakeTransport) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.times)
}

func (f *fakeTransport) gaps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	var gaps []time.Duration
	for i := 1; i < len(f.times); i++ {
		gaps = append(gaps, f.times[i].Sub(f.times[i-1]))
	}
	return gaps
}

func loggingConfig(unit time.Duration, frequency int) config.LoggingConfig {
	return config.LoggingConfig{
		Enabled:     true,
		Endpoint:    "http://collector.example/logs",
		Frequency:   frequency,
		DeviceName:  "test-device",
		BackoffUnit: unit,
	}
}

func seedStore(t *testing.T, s store.Store, lastSeen int64) {
	t.Helper()

	committed := make(chan struct{}, 1)
	s.Subscribe("seed", func(store.Change) { committed <- struct{}{} })
	defer s.Unsubscribe("seed")

	s.UpsertBatch([]*models.Beacon{{
		Hashcode:       lastSeen,
		BeaconType:     models.TypeIBeacon,
		BeaconAddress:  "AA:BB:CC:DD:EE:FF",
		LastSeen:       lastSeen,
		LastMinuteSeen: lastSeen / 60000,
	}})

	select {
	case <-committed:
	case <-time.After(time.Second):
		t.Fatalf("timed out seeding the store")
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestFlushTriggersAtConfiguredFrequency(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)
	seedStore(t, s, time.Now().UnixMilli())

	transport := &fakeTransport{}
	scheduler := NewScheduler(s, prefs.NewMemoryPrefs(), transport, loggingConfig(time.Millisecond, 5), nil, zerolog.Nop())
	t.Cleanup(scheduler.Close)

	for i := 0; i < 4; i++ {
		scheduler.OnTick()
	}
	time.Sleep(50 * time.Millisecond)
	if got := transport.attempts(); got != 0 {
		t.Fatalf("no flush expected before the fifth tick, got %d attempts", got)
	}

	scheduler.OnTick()
	waitFor(t, time.Second, func() bool { return transport.attempts() == 1 }, "first flush")

	// The counter reset: four more ticks stay quiet, the fifth flushes
	// again.
	for i := 0; i < 4; i++ {
		scheduler.OnTick()
	}
	time.Sleep(50 * time.Millisecond)
	if got := transport.attempts(); got != 1 {
		t.Fatalf("counter did not reset after flush, got %d attempts", got)
	}
	scheduler.OnTick()
	waitFor(t, time.Second, func() bool { return transport.attempts() == 2 }, "second flush")
}

func TestTickCounterOnlyAdvancesWhileEnabled(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)

	transport := &fakeTransport{}
	cfg := loggingConfig(time.Millisecond, 1)
	cfg.Enabled = false
	scheduler := NewScheduler(s, prefs.NewMemoryPrefs(), transport, cfg, nil, zerolog.Nop())
	t.Cleanup(scheduler.Close)

	for i := 0; i < 10; i++ {
		scheduler.OnTick()
	}
	time.Sleep(50 * time.Millisecond)
	if got := transport.attempts(); got != 0 {
		t.Fatalf("disabled logging must never flush, got %d attempts", got)
	}
}

func TestRetryDelaysAndTerminalFailure(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)
	seedStore(t, s, time.Now().UnixMilli())

	pf := prefs.NewMemoryPrefs()
	pf.SetLastDeliveryAt(1234)

	var failures atomic.Int32
	transport := &fakeTransport{failures: -1} // every attempt fails
	unit := 10 * time.Millisecond

	scheduler := NewScheduler(s, pf, transport, loggingConfig(unit, 1), func() {
		failures.Add(1)
	}, zerolog.Nop())
	t.Cleanup(scheduler.Close)

	scheduler.OnTick()

	// Attempts at 0, 4u, 4u+16u, 4u+16u+64u.
	waitFor(t, 3*time.Second, func() bool { return failures.Load() == 1 }, "terminal failure notification")

	if got := transport.attempts(); got != MaxRetries+1 {
		t.Fatalf("expected exactly %d attempts, got %d", MaxRetries+1, got)
	}

	expected := []time.Duration{4 * unit, 16 * unit, 64 * unit}
	for i, gap := range transport.gaps() {
		if gap < expected[i] || gap > expected[i]*3 {
			t.Fatalf("retry %d waited %s, expected about %s", i+2, gap, expected[i])
		}
	}

	// The delivery cursor reverted, so the window re-qualifies.
	if got := pf.LastDeliveryAt(); got != 1234 {
		t.Fatalf("cursor must revert on terminal failure, got %d", got)
	}

	if failures.Load() != 1 {
		t.Fatalf("terminal failure must be surfaced exactly once, got %d", failures.Load())
	}
}

func TestSuccessfulFlushAdvancesCursorBeforeDispatch(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)

	seen := time.Now().UnixMilli()
	seedStore(t, s, seen)

	pf := prefs.NewMemoryPrefs()
	transport := &fakeTransport{}
	var cursorAtDispatch atomic.Int64
	transport.onPost = func() {
		cursorAtDispatch.Store(pf.LastDeliveryAt())
	}

	before := time.Now().UnixMilli()
	scheduler := NewScheduler(s, pf, transport, loggingConfig(time.Millisecond, 1), nil, zerolog.Nop())
	t.Cleanup(scheduler.Close)

	scheduler.OnTick()
	waitFor(t, time.Second, func() bool { return transport.attempts() == 1 }, "flush")

	if got := cursorAtDispatch.Load(); got < before {
		t.Fatalf("cursor must move to the flush start before dispatch, got %d", got)
	}

	transport.mu.Lock()
	request := transport.requests[0]
	transport.mu.Unlock()

	if request.DeviceName != "test-device" {
		t.Fatalf("unexpected device name %q", request.DeviceName)
	}
	if len(request.Beacons) != 1 || request.Beacons[0].LastSeen != seen {
		t.Fatalf("unexpected snapshot: %+v", request.Beacons)
	}
}

func TestOverlappingFlushIsCoalesced(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)
	seedStore(t, s, time.Now().UnixMilli())

	transport := &fakeTransport{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	scheduler := NewScheduler(s, prefs.NewMemoryPrefs(), transport, loggingConfig(time.Millisecond, 1), nil, zerolog.Nop())
	t.Cleanup(scheduler.Close)

	scheduler.OnTick()
	select {
	case <-transport.started:
	case <-time.After(time.Second):
		t.Fatalf("first flush never started")
	}

	// Triggers while a flush is in flight are skipped.
	for i := 0; i < 5; i++ {
		scheduler.OnTick()
	}
	time.Sleep(50 * time.Millisecond)
	if got := transport.attempts(); got != 1 {
		t.Fatalf("expected one in-flight attempt, got %d", got)
	}

	close(transport.release)
	time.Sleep(50 * time.Millisecond)

	// The counter re-arms after coalescing: the next tick flushes.
	scheduler.OnTick()
	waitFor(t, time.Second, func() bool { return transport.attempts() == 2 }, "post-coalesce flush")
}

func TestCloseCancelsPendingRetry(t *testing.T) {
	s := store.NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)
	seedStore(t, s, time.Now().UnixMilli())

	var failures atomic.Int32
	transport := &fakeTransport{failures: -1}
	unit := 50 * time.Millisecond

	scheduler := NewScheduler(s, prefs.NewMemoryPrefs(), transport, loggingConfig(unit, 1), func() {
		failures.Add(1)
	}, zerolog.Nop())

	scheduler.OnTick()
	waitFor(t, time.Second, func() bool { return transport.attempts() == 1 }, "first attempt")

	scheduler.Close()
	scheduler.Close() // closing twice is safe

	time.Sleep(8 * unit)
	if got := transport.attempts(); got != 1 {
		t.Fatalf("retry fired after close, got %d attempts", got)
	}
	if failures.Load() != 0 {
		t.Fatalf("no terminal failure may surface after close")
	}
}
