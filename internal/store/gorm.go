package store

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"beacon-scanner/internal/models"
)

// GormStore persists beacon records through GORM. Each ranging tick's
// batch commits inside one transaction so a tick is never partially
// applied.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger

	jobMu  sync.Mutex
	jobs   chan func()
	closed bool
	done   chan struct{}

	subMu sync.Mutex
	subs  map[string]func(Change)
}

func NewGormStore(db *gorm.DB, logger zerolog.Logger) *GormStore {
	s := &GormStore{
		db:     db,
		logger: logger,
		jobs:   make(chan func(), writeQueueDepth),
		done:   make(chan struct{}),
		subs:   make(map[string]func(Change)),
	}
	go s.writeLoop()
	return s
}

func (s *GormStore) writeLoop() {
	defer close(s.done)
	for job := range s.jobs {
		job()
	}
}

func (s *GormStore) submit(job func()) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.closed {
		return
	}
	s.jobs <- job
}

func (s *GormStore) UpsertBatch(beacons []*models.Beacon) {
	if len(beacons) == 0 {
		return
	}

	batch := make([]models.Beacon, 0, len(beacons))
	for _, b := range beacons {
		batch = append(batch, *b)
	}

	s.submit(func() {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			for i := range batch {
				if err := upsertOne(tx, &batch[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).
				Int("batch_size", len(batch)).
				Msg("failed to commit upsert batch")
			return
		}

		s.notify(Change{Empty: s.count() == 0})
	})
}

func upsertOne(tx *gorm.DB, beacon *models.Beacon) error {
	var existing models.Beacon
	result := tx.Where("hashcode = ?", beacon.Hashcode).First(&existing)

	if result.Error == nil {
		if existing.LastMinuteSeen > beacon.LastMinuteSeen {
			beacon.LastMinuteSeen = existing.LastMinuteSeen
		}
		return tx.Model(&models.Beacon{}).
			Where("hashcode = ?", beacon.Hashcode).
			Updates(map[string]interface{}{
				"beacon_type":         beacon.BeaconType,
				"beacon_address":      beacon.BeaconAddress,
				"namespace_id":        beacon.NamespaceID,
				"instance_id":         beacon.InstanceID,
				"url":                 beacon.URL,
				"uuid":                beacon.UUID,
				"major":               beacon.Major,
				"minor":               beacon.Minor,
				"rssi":                beacon.Rssi,
				"manufacturer":        beacon.Manufacturer,
				"tx_power":            beacon.TxPower,
				"distance":            beacon.Distance,
				"last_seen":           beacon.LastSeen,
				"last_minute_seen":    beacon.LastMinuteSeen,
				"has_telemetry":       beacon.HasTelemetry,
				"telemetry_version":   beacon.TelemetryVersion,
				"battery_milli_volts": beacon.BatteryMilliVolts,
				"temperature":         beacon.Temperature,
				"pdu_count":           beacon.PduCount,
				"uptime":              beacon.Uptime,
			}).Error
	}

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return tx.Create(beacon).Error
	}
	return result.Error
}

func (s *GormStore) Query(ctx context.Context, sinceMillis int64) ([]models.Beacon, error) {
	var out []models.Beacon
	err := s.db.WithContext(ctx).
		Where("last_seen > ?", sinceMillis).
		Find(&out).Error
	return out, err
}

func (s *GormStore) ClearAll() {
	s.submit(func() {
		err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.Beacon{}).Error
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to clear beacon records")
			return
		}

		s.notify(Change{Empty: true})
	})
}

func (s *GormStore) count() int64 {
	var n int64
	if err := s.db.Model(&models.Beacon{}).Count(&n).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to count beacon records")
	}
	return n
}

func (s *GormStore) Subscribe(id string, fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs[id] = fn
}

func (s *GormStore) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, id)
}

func (s *GormStore) notify(change Change) {
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

func (s *GormStore) Close() {
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

var _ Store = (*GormStore)(nil)
