package frame

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"beacon-scanner/internal/models"
)

const (
	// EddystoneServiceUUID is the 16-bit service UUID shared by all
	// Eddystone frame types.
	EddystoneServiceUUID = 0xFEAA

	eddystoneUIDFrameCode = 0x00
	eddystoneURLFrameCode = 0x10

	altBeaconTypeCode = 0xBEAC
)

// ErrUnknownEddystoneFrame marks an Eddystone sub-type this decoder does
// not understand. Callers skip the single observation and keep going.
var ErrUnknownEddystoneFrame = errors.New("unknown eddystone frame type")

// Decode turns one raw advertisement observation into a normalized
// beacon record. It is pure: no I/O, no retained state, and the same
// observation and timestamp always produce the same record.
func Decode(obs *models.Observation, at time.Time) (*models.Beacon, error) {
	now := at.UnixMilli()
	beacon := &models.Beacon{
		BeaconAddress:  obs.Address,
		Rssi:           obs.Rssi,
		Manufacturer:   obs.Manufacturer,
		TxPower:        obs.TxPower,
		Distance:       obs.Distance,
		LastSeen:       now,
		LastMinuteSeen: now / 60000,
	}

	if obs.ServiceUUID == EddystoneServiceUUID {
		decodeTelemetry(obs, beacon)

		switch obs.BeaconTypeCode {
		case eddystoneUIDFrameCode:
			beacon.BeaconType = models.TypeEddystoneUID
			beacon.NamespaceID = CanonicalIdentifier(obs.ID1)
			beacon.InstanceID = CanonicalIdentifier(obs.ID2)
		case eddystoneURLFrameCode:
			beacon.BeaconType = models.TypeEddystoneURL
			url, err := DecompressURL(obs.ID1)
			if err != nil {
				return nil, fmt.Errorf("decode eddystone url: %w", err)
			}
			beacon.URL = url
		default:
			return nil, fmt.Errorf("frame type 0x%02x: %w", obs.BeaconTypeCode, ErrUnknownEddystoneFrame)
		}
	} else {
		if obs.BeaconTypeCode == altBeaconTypeCode {
			beacon.BeaconType = models.TypeAltBeacon
		} else {
			beacon.BeaconType = models.TypeIBeacon
		}
		beacon.UUID = CanonicalIdentifier(obs.ID1)
		beacon.Major = CanonicalIdentifier(obs.ID2)
		beacon.Minor = CanonicalIdentifier(obs.ID3)
	}

	beacon.Hashcode = identityKey(beacon, obs.BeaconTypeCode)
	return beacon, nil
}

func decodeTelemetry(obs *models.Observation, beacon *models.Beacon) {
	if len(obs.ExtraDataFields) == 0 {
		return
	}
	field := func(i int) int64 {
		if i < len(obs.ExtraDataFields) {
			return obs.ExtraDataFields[i]
		}
		return 0
	}
	beacon.HasTelemetry = true
	beacon.TelemetryVersion = field(0)
	beacon.BatteryMilliVolts = field(1)
	beacon.Temperature = FixedPointTemperature(field(2))
	beacon.PduCount = field(3)
	beacon.Uptime = field(4)
}

// FixedPointTemperature converts the TLM temperature byte pair, a
// signed 8.8 fixed-point value, to degrees Celsius.
func FixedPointTemperature(raw int64) float64 {
	return float64(int16(raw)) / 256.0
}

// identityKey is the upsert key: observations of the same physical
// beacon (same address, type code and decoded identifiers) hash to the
// same value regardless of rssi, distance or time.
func identityKey(b *models.Beacon, typeCode int) int64 {
	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(b.BeaconAddress)
	write(fmt.Sprintf("%#x", typeCode))
	write(b.NamespaceID)
	write(b.InstanceID)
	write(b.URL)
	write(b.UUID)
	write(b.Major)
	write(b.Minor)
	return int64(h.Sum64())
}
