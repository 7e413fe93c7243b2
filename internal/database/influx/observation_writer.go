package influx

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"beacon-scanner/internal/models"
)

// ObservationWriter records every decoded observation as a time-series
// point, keyed by beacon identity. Writes go through the non-blocking
// batch API and never stall the scan pipeline.
type ObservationWriter struct {
	writeAPI api.WriteAPI
	logger   zerolog.Logger
}

func NewObservationWriter(writeAPI api.WriteAPI, logger zerolog.Logger) *ObservationWriter {
	return &ObservationWriter{
		writeAPI: writeAPI,
		logger:   logger,
	}
}

func (w *ObservationWriter) WriteBeacons(beacons []*models.Beacon, at time.Time) {
	for _, beacon := range beacons {
		tags := map[string]string{
			"beacon_address": beacon.BeaconAddress,
			"beacon_type":    beacon.BeaconType.String(),
		}

		fields := map[string]interface{}{
			"rssi":     beacon.Rssi,
			"distance": beacon.Distance,
			"tx_power": beacon.TxPower,
		}
		if beacon.HasTelemetry {
			fields["battery_milli_volts"] = beacon.BatteryMilliVolts
			fields["temperature"] = beacon.Temperature
			fields["pdu_count"] = beacon.PduCount
			fields["uptime"] = beacon.Uptime
		}

		point := influxdb2.NewPoint("beacon_observation", tags, fields, at)
		w.writeAPI.WritePoint(point)
	}

	w.logger.Debug().
		Int("beacons", len(beacons)).
		Msg("added observation points to InfluxDB")
}
