package models

type BeaconType int

const (
	TypeEddystoneUID BeaconType = 0
	TypeEddystoneURL BeaconType = 1
	TypeIBeacon      BeaconType = 2
	TypeAltBeacon    BeaconType = 3
)

func (t BeaconType) String() string {
	switch t {
	case TypeEddystoneUID:
		return "EDDYSTONE_UID"
	case TypeEddystoneURL:
		return "EDDYSTONE_URL"
	case TypeIBeacon:
		return "IBEACON"
	case TypeAltBeacon:
		return "ALTBEACON"
	}
	return "UNKNOWN"
}

// Beacon is the persisted, deduplicated record of a physical beacon.
// Hashcode is the identity key derived from (address, type code, decoded
// identifiers), so re-observing the same beacon updates the row instead
// of inserting a new one.
type Beacon struct {
	Hashcode      int64      `gorm:"primaryKey" json:"hashcode"`
	BeaconType    BeaconType `gorm:"not null" json:"beacon_type"`
	BeaconAddress string     `gorm:"index;not null" json:"beacon_address"`

	NamespaceID string `json:"namespace_id,omitempty"`
	InstanceID  string `json:"instance_id,omitempty"`
	URL         string `json:"url,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Major       string `json:"major,omitempty"`
	Minor       string `json:"minor,omitempty"`

	Rssi         int     `json:"rssi"`
	Manufacturer int     `json:"manufacturer"`
	TxPower      int     `json:"tx_power"`
	Distance     float64 `json:"distance"`

	// LastSeen is epoch milliseconds, LastMinuteSeen its minute bucket
	// (epoch ms / 60000). LastMinuteSeen never decreases for a record.
	LastSeen       int64 `gorm:"index" json:"last_seen"`
	LastMinuteSeen int64 `gorm:"index" json:"last_minute_seen"`

	HasTelemetry      bool    `json:"has_telemetry"`
	TelemetryVersion  int64   `json:"telemetry_version,omitempty"`
	BatteryMilliVolts int64   `json:"battery_milli_volts,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	PduCount          int64   `json:"pdu_count,omitempty"`
	Uptime            int64   `json:"uptime,omitempty"`
}
