package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

// MemoryStore keeps records in process memory. It backs the scanner
// when no database is configured and the package tests; the write
// serialization and notification contract is identical to the
// database-backed store.
type MemoryStore struct {
	logger zerolog.Logger

	jobMu  sync.Mutex
	jobs   chan func()
	closed bool
	done   chan struct{}

	recordMu sync.RWMutex
	records  map[int64]models.Beacon

	subMu sync.Mutex
	subs  map[string]func(Change)
}

const writeQueueDepth = 64

func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	s := &MemoryStore{
		logger:  logger,
		jobs:    make(chan func(), writeQueueDepth),
		done:    make(chan struct{}),
		records: make(map[int64]models.Beacon),
		subs:    make(map[string]func(Change)),
	}
	go s.writeLoop()
	return s
}

func (s *MemoryStore) writeLoop() {
	defer close(s.done)
	for job := range s.jobs {
		job()
	}
}

func (s *MemoryStore) submit(job func()) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.closed {
		return
	}
	s.jobs <- job
}

func (s *MemoryStore) UpsertBatch(beacons []*models.Beacon) {
	if len(beacons) == 0 {
		return
	}

	batch := make([]models.Beacon, 0, len(beacons))
	for _, b := range beacons {
		batch = append(batch, *b)
	}

	s.submit(func() {
		s.recordMu.Lock()
		for _, b := range batch {
			if existing, ok := s.records[b.Hashcode]; ok && existing.LastMinuteSeen > b.LastMinuteSeen {
				b.LastMinuteSeen = existing.LastMinuteSeen
			}
			s.records[b.Hashcode] = b
		}
		empty := len(s.records) == 0
		s.recordMu.Unlock()

		s.notify(Change{Empty: empty})
	})
}

func (s *MemoryStore) Query(ctx context.Context, sinceMillis int64) ([]models.Beacon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.recordMu.RLock()
	defer s.recordMu.RUnlock()

	var out []models.Beacon
	for _, b := range s.records {
		if b.LastSeen > sinceMillis {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClearAll() {
	s.submit(func() {
		s.recordMu.Lock()
		s.records = make(map[int64]models.Beacon)
		s.recordMu.Unlock()

		s.notify(Change{Empty: true})
	})
}

func (s *MemoryStore) Subscribe(id string, fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs[id] = fn
}

func (s *MemoryStore) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, id)
}

func (s *MemoryStore) notify(change Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// Close drains pending write batches and stops the writer goroutine.
func (s *MemoryStore) Close() {
	s.jobMu.Lock()
	if s.closed {
		s.jobMu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.jobMu.Unlock()

	<-s.done
}

var _ Store = (*MemoryStore)(nil)
