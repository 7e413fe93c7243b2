package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

func newTestStore(t *testing.T) (*MemoryStore, <-chan Change) {
	t.Helper()

	s := NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)

	changes := make(chan Change, 32)
	s.Subscribe("test", func(c Change) { changes <- c })

	return s, changes
}

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()

	select {
	case c := <-changes:
		return c
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a store change")
		return Change{}
	}
}

func beaconWithSeen(hash int64, lastSeen int64) *models.Beacon {
	return &models.Beacon{
		Hashcode:       hash,
		BeaconType:     models.TypeEddystoneUID,
		BeaconAddress:  "DE:AD:BE:EF:00:01",
		Rssi:           -70,
		LastSeen:       lastSeen,
		LastMinuteSeen: lastSeen / 60000,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s, changes := newTestStore(t)

	for i := 0; i < 3; i++ {
		seen := int64(60000 * (i + 1))
		s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, seen)})
		waitChange(t, changes)
	}

	records, err := s.Query(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if records[0].LastMinuteSeen != 3 {
		t.Fatalf("expected minute bucket of the latest application, got %d", records[0].LastMinuteSeen)
	}
}

func TestUpsertKeepsLastMinuteSeenMonotone(t *testing.T) {
	s, changes := newTestStore(t)

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 5*60000)})
	waitChange(t, changes)
	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 2*60000)})
	waitChange(t, changes)

	records, err := s.Query(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].LastMinuteSeen != 5 {
		t.Fatalf("minute bucket must never decrease, got %d", records[0].LastMinuteSeen)
	}
}

func TestQueryFiltersBySinceTimestamp(t *testing.T) {
	s, changes := newTestStore(t)

	s.UpsertBatch([]*models.Beacon{
		beaconWithSeen(1, 100),
		beaconWithSeen(2, 200),
	})
	waitChange(t, changes)

	records, err := s.Query(context.Background(), 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record newer than 150, got %d", len(records))
	}
	if records[0].Hashcode != 2 {
		t.Fatalf("expected the newer record, got hash %d", records[0].Hashcode)
	}

	// The boundary is strict: lastSeen == since does not qualify.
	records, err = s.Query(context.Background(), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records at the strict boundary, got %d", len(records))
	}
}

func TestClearAllBetweenBatches(t *testing.T) {
	s, changes := newTestStore(t)

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 100), beaconWithSeen(2, 100)})
	waitChange(t, changes)

	s.ClearAll()
	if c := waitChange(t, changes); !c.Empty {
		t.Fatalf("expected the store to be empty after clear")
	}

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(3, 200)})
	waitChange(t, changes)

	records, err := s.Query(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Hashcode != 3 {
		t.Fatalf("expected only the second batch to survive, got %+v", records)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	s := NewMemoryStore(zerolog.Nop())
	t.Cleanup(s.Close)

	count := make(chan struct{}, 8)
	s.Subscribe("listener", func(Change) { count <- struct{}{} })
	s.Subscribe("listener", func(Change) { count <- struct{}{} })

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 100)})

	select {
	case <-count:
	case <-time.After(time.Second):
		t.Fatalf("subscriber never notified")
	}

	select {
	case <-count:
		t.Fatalf("same subscriber id must only be registered once")
	case <-time.After(50 * time.Millisecond):
	}

	s.Unsubscribe("listener")
	s.Unsubscribe("unknown") // removing an unknown id is a no-op
}

func TestWritesAfterCloseAreDiscarded(t *testing.T) {
	s := NewMemoryStore(zerolog.Nop())
	s.Close()
	s.Close() // closing twice is safe

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 100)})
	s.ClearAll()
}

func TestSnapshotIsImmuneToLaterWrites(t *testing.T) {
	s, changes := newTestStore(t)

	s.UpsertBatch([]*models.Beacon{beaconWithSeen(1, 100)})
	waitChange(t, changes)

	snapshot, err := s.Query(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	update := beaconWithSeen(1, 200)
	update.Rssi = -40
	s.UpsertBatch([]*models.Beacon{update})
	waitChange(t, changes)

	if snapshot[0].Rssi != -70 || snapshot[0].LastSeen != 100 {
		t.Fatalf("snapshot mutated by a later write: %+v", snapshot[0])
	}
}
