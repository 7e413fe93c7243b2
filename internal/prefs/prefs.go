// Package prefs holds the small set of mutable scanner state that
// survives restarts: the delivery cursor, the was-scanning flag, the
// tutorial flag and the rating cycle state. Reads and writes are cheap
// and never fail from the caller's point of view; a backend write error
// is logged and the in-memory value kept.
package prefs

import "sync"

const (
	keyLastDeliveryAt  = "last_delivery_at"
	keyWasScanning     = "was_scanning"
	keyTutorialSeen    = "tutorial_seen"
	keyRatingSeen      = "rating_popup_seen"
	keyRatingOngoing   = "rating_ongoing"
	keyRatingTickCount = "rating_tick_count"
)

type Prefs interface {
	LastDeliveryAt() int64
	SetLastDeliveryAt(millis int64)

	WasScanning() bool
	SetWasScanning(scanning bool)

	TutorialSeen() bool
	SetTutorialSeen(seen bool)

	RatingPopupSeen() bool
	SetRatingPopupSeen(seen bool)

	RatingOngoing() bool
	SetRatingOngoing(ongoing bool)

	RatingTickCount() int64
	SetRatingTickCount(n int64)
}

// MemoryPrefs is the non-persistent implementation used when no
// database is configured and by tests.
type MemoryPrefs struct {
	mu    sync.RWMutex
	ints  map[string]int64
	bools map[string]bool
}

func NewMemoryPrefs() *MemoryPrefs {
	return &MemoryPrefs{
		ints:  make(map[string]int64),
		bools: make(map[string]bool),
	}
}

func (p *MemoryPrefs) getInt(key string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ints[key]
}

func (p *MemoryPrefs) setInt(key string, v int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ints[key] = v
}

func (p *MemoryPrefs) getBool(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bools[key]
}

func (p *MemoryPrefs) setBool(key string, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bools[key] = v
}

func (p *MemoryPrefs) LastDeliveryAt() int64          { return p.getInt(keyLastDeliveryAt) }
func (p *MemoryPrefs) SetLastDeliveryAt(millis int64) { p.setInt(keyLastDeliveryAt, millis) }

func (p *MemoryPrefs) WasScanning() bool             { return p.getBool(keyWasScanning) }
func (p *MemoryPrefs) SetWasScanning(scanning bool)  { p.setBool(keyWasScanning, scanning) }
func (p *MemoryPrefs) TutorialSeen() bool            { return p.getBool(keyTutorialSeen) }
func (p *MemoryPrefs) SetTutorialSeen(seen bool)     { p.setBool(keyTutorialSeen, seen) }
func (p *MemoryPrefs) RatingPopupSeen() bool         { return p.getBool(keyRatingSeen) }
func (p *MemoryPrefs) SetRatingPopupSeen(seen bool)  { p.setBool(keyRatingSeen, seen) }
func (p *MemoryPrefs) RatingOngoing() bool           { return p.getBool(keyRatingOngoing) }
func (p *MemoryPrefs) SetRatingOngoing(ongoing bool) { p.setBool(keyRatingOngoing, ongoing) }
func (p *MemoryPrefs) RatingTickCount() int64        { return p.getInt(keyRatingTickCount) }
func (p *MemoryPrefs) SetRatingTickCount(n int64)    { p.setInt(keyRatingTickCount, n) }

var _ Prefs = (*MemoryPrefs)(nil)
