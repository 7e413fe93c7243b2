package models

// Preference is one persisted key/value entry of the mutable scanner
// state (delivery cursor, was-scanning flag, rating cycle state).
type Preference struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `gorm:"not null" json:"value"`
}
