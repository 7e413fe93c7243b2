package scan

import "beacon-scanner/internal/models"

// RangeNotifier receives one callback per ranging tick with the beacons
// currently visible in the region. Called from the driver's own
// goroutine.
type RangeNotifier func(region string, beacons []*models.Observation)

// Listener is notified when the underlying radio service finishes
// binding and is ready to range.
type Listener interface {
	OnRadioServiceBound()
}

// RadioDriver is the boundary to the component that physically performs
// radio scanning. The scanner always ranges the whole application
// region; no identifier sub-filtering happens here.
type RadioDriver interface {
	Bind(listener Listener)
	Unbind(listener Listener)
	IsBound(listener Listener) bool
	SetRangeNotifier(notifier RangeNotifier)
	StartRanging(region string) error
}
