package prefs

import (
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"beacon-scanner/internal/models"
)

// GormPrefs persists preference entries as key/value rows. Values are
// cached in memory; the database is read once per key and written
// through on every set.
type GormPrefs struct {
	db     *gorm.DB
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]string
}

func NewGormPrefs(db *gorm.DB, logger zerolog.Logger) *GormPrefs {
	return &GormPrefs{
		db:     db,
		logger: logger,
		cache:  make(map[string]string),
	}
}

func (p *GormPrefs) get(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.cache[key]; ok {
		return v
	}

	var pref models.Preference
	err := p.db.Where("key = ?", key).First(&pref).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Error().Err(err).Str("key", key).Msg("failed to read preference")
		}
		p.cache[key] = ""
		return ""
	}

	p.cache[key] = pref.Value
	return pref.Value
}

func (p *GormPrefs) set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache[key] = value

	pref := models.Preference{Key: key, Value: value}
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Preference
		result := tx.Where("key = ?", key).First(&existing)
		if result.Error == nil {
			return tx.Model(&models.Preference{}).
				Where("key = ?", key).
				Update("value", value).Error
		}
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tx.Create(&pref).Error
		}
		return result.Error
	})
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("failed to write preference")
	}
}

func (p *GormPrefs) getInt(key string) int64 {
	v := p.get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.logger.Warn().Str("key", key).Str("value", v).Msg("malformed integer preference")
		return 0
	}
	return n
}

func (p *GormPrefs) getBool(key string) bool {
	return p.get(key) == "true"
}

func (p *GormPrefs) setBool(key string, v bool) {
	p.set(key, strconv.FormatBool(v))
}

func (p *GormPrefs) LastDeliveryAt() int64 { return p.getInt(keyLastDeliveryAt) }
func (p *GormPrefs) SetLastDeliveryAt(millis int64) {
	p.set(keyLastDeliveryAt, strconv.FormatInt(millis, 10))
}

func (p *GormPrefs) WasScanning() bool             { return p.getBool(keyWasScanning) }
func (p *GormPrefs) SetWasScanning(scanning bool)  { p.setBool(keyWasScanning, scanning) }
func (p *GormPrefs) TutorialSeen() bool            { return p.getBool(keyTutorialSeen) }
func (p *GormPrefs) SetTutorialSeen(seen bool)     { p.setBool(keyTutorialSeen, seen) }
func (p *GormPrefs) RatingPopupSeen() bool         { return p.getBool(keyRatingSeen) }
func (p *GormPrefs) SetRatingPopupSeen(seen bool)  { p.setBool(keyRatingSeen, seen) }
func (p *GormPrefs) RatingOngoing() bool           { return p.getBool(keyRatingOngoing) }
func (p *GormPrefs) SetRatingOngoing(ongoing bool) { p.setBool(keyRatingOngoing, ongoing) }
func (p *GormPrefs) RatingTickCount() int64        { return p.getInt(keyRatingTickCount) }
func (p *GormPrefs) SetRatingTickCount(n int64) {
	p.set(keyRatingTickCount, strconv.FormatInt(n, 10))
}

var _ Prefs = (*GormPrefs)(nil)
