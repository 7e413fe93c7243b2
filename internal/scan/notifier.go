package scan

import "github.com/rs/zerolog"

// Notifier is the one-way surface towards UI and analytics consumers.
// Implementations must be safe for concurrent use and must never block
// the caller on acknowledgement.
type Notifier interface {
	BluetoothStateChanged(enabled bool)
	ScanningStateChanged(scanning bool)
	EmptyStateChanged(empty bool)
	DeliveryFailed()
	RatingStepRequested(step int, visible bool)
	PermissionRequired()
	BluetoothDisabledError()
}

// LogNotifier renders every notification as a structured log line.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) BluetoothStateChanged(enabled bool) {
	n.logger.Info().Bool("enabled", enabled).Msg("bluetooth state changed")
}

func (n *LogNotifier) ScanningStateChanged(scanning bool) {
	n.logger.Info().Bool("scanning", scanning).Msg("scanning state changed")
}

func (n *LogNotifier) EmptyStateChanged(empty bool) {
	n.logger.Debug().Bool("empty", empty).Msg("result set emptiness changed")
}

func (n *LogNotifier) DeliveryFailed() {
	n.logger.Warn().Msg("log delivery failed after exhausting retries")
}

func (n *LogNotifier) RatingStepRequested(step int, visible bool) {
	n.logger.Info().Int("step", step).Bool("visible", visible).Msg("rating step requested")
}

func (n *LogNotifier) PermissionRequired() {
	n.logger.Warn().Msg("location permission required to scan")
}

func (n *LogNotifier) BluetoothDisabledError() {
	n.logger.Warn().Msg("cannot scan while bluetooth is disabled")
}

// MultiNotifier fans one notification out to several consumers.
type MultiNotifier []Notifier

func (m MultiNotifier) BluetoothStateChanged(enabled bool) {
	for _, n := range m {
		n.BluetoothStateChanged(enabled)
	}
}

func (m MultiNotifier) ScanningStateChanged(scanning bool) {
	for _, n := range m {
		n.ScanningStateChanged(scanning)
	}
}

func (m MultiNotifier) EmptyStateChanged(empty bool) {
	for _, n := range m {
		n.EmptyStateChanged(empty)
	}
}

func (m MultiNotifier) DeliveryFailed() {
	for _, n := range m {
		n.DeliveryFailed()
	}
}

func (m MultiNotifier) RatingStepRequested(step int, visible bool) {
	for _, n := range m {
		n.RatingStepRequested(step, visible)
	}
}

func (m MultiNotifier) PermissionRequired() {
	for _, n := range m {
		n.PermissionRequired()
	}
}

func (m MultiNotifier) BluetoothDisabledError() {
	for _, n := range m {
		n.BluetoothDisabledError()
	}
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (MultiNotifier)(nil)
)
