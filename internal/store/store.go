// Package store owns durability of beacon records: upsert-by-identity,
// time-windowed queries, bulk clear and change notification. Writes are
// applied asynchronously to the caller but serialized internally, one
// whole batch at a time.
package store

import (
	"context"

	"beacon-scanner/internal/models"
)

// Change is delivered to subscribers after each committed write batch.
type Change struct {
	// Empty reports whether the store holds no records after the
	// commit. Drives the empty-result-set notification.
	Empty bool
}

type Store interface {
	// UpsertBatch applies all records of one ranging tick as a single
	// atomic unit: a record whose identity key already exists is
	// overwritten (LastMinuteSeen never decreasing), others insert.
	// Returns immediately; the commit happens on the writer goroutine.
	UpsertBatch(beacons []*models.Beacon)

	// Query returns value copies of all records with LastSeen strictly
	// greater than sinceMillis, in no particular order.
	Query(ctx context.Context, sinceMillis int64) ([]models.Beacon, error)

	// ClearAll atomically deletes every record. It is totally ordered
	// against upsert batches, never interleaving inside one.
	ClearAll()

	// Subscribe registers fn under id; registering the same id again
	// replaces the previous callback. Unsubscribe of an unknown id is
	// a no-op.
	Subscribe(id string, fn func(Change))
	Unsubscribe(id string)

	// Close stops the writer goroutine after draining pending batches.
	// Writes issued after Close are silently discarded.
	Close()
}
