package scan

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/bus"
	"beacon-scanner/internal/config"
	"beacon-scanner/internal/delivery"
	"beacon-scanner/internal/frame"
	"beacon-scanner/internal/models"
	"beacon-scanner/internal/prefs"
	"beacon-scanner/internal/rating"
	"beacon-scanner/internal/store"
)

type State int

const (
	Idle State = iota
	Binding
	Ranging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Binding:
		return "BINDING"
	case Ranging:
		return "RANGING"
	}
	return "UNKNOWN"
}

var (
	ErrNoPermission       = errors.New("location permission not granted")
	ErrBluetoothDisabled  = errors.New("bluetooth is disabled")
	ErrServiceUnavailable = errors.New("radio service unavailable")
)

const storeSubscriberID = "scan-controller"

// ObservationSink receives every decoded record of a tick, e.g. for a
// time-series history. Optional; a nil sink is skipped.
type ObservationSink interface {
	WriteBeacons(beacons []*models.Beacon, at time.Time)
}

// Controller orchestrates the scan lifecycle: bluetooth on/off
// transitions, binding and ranging of the radio driver, and the
// per-tick fan-out decode -> store -> delivery counter -> rating
// evaluation. All tick processing happens on one consumer goroutine
// draining the event bus, one batch at a time.
type Controller struct {
	driver    RadioDriver
	events    *bus.Bus
	store     store.Store
	scheduler *delivery.Scheduler
	prompt    *rating.Prompt
	prefs     prefs.Prefs
	notifier  Notifier
	sink      ObservationSink
	cfg       config.ScannerConfig
	logger    zerolog.Logger

	mu            sync.Mutex
	state         State
	hasPermission bool
	btEnabled     bool
	intended      bool
	stopped       bool

	cancelSub func()
	done      chan struct{}
}

func NewController(
	driver RadioDriver,
	events *bus.Bus,
	st store.Store,
	scheduler *delivery.Scheduler,
	prompt *rating.Prompt,
	pf prefs.Prefs,
	notifier Notifier,
	sink ObservationSink,
	cfg config.ScannerConfig,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		driver:        driver,
		events:        events,
		store:         st,
		scheduler:     scheduler,
		prompt:        prompt,
		prefs:         pf,
		notifier:      notifier,
		sink:          sink,
		cfg:           cfg,
		logger:        logger,
		state:         Idle,
		hasPermission: cfg.LocationPermission,
		btEnabled:     true,
	}
}

// Start subscribes to the event bus and spawns the consumer goroutine.
// Scanning resumes automatically when scan-on-open is configured or the
// scanner was scanning before the last shutdown.
func (c *Controller) Start() {
	events, cancel := c.events.Subscribe()
	c.cancelSub = cancel
	c.done = make(chan struct{})

	c.store.Subscribe(storeSubscriberID, func(change store.Change) {
		c.notifier.EmptyStateChanged(change.Empty)
	})

	go c.run(events)

	if !c.prefs.TutorialSeen() {
		c.logger.Debug().Msg("first run, marking tutorial as seen")
		c.prefs.SetTutorialSeen(true)
	}

	if c.cfg.ScanOnOpen || c.prefs.WasScanning() {
		if err := c.StartScan(); err != nil {
			c.logger.Warn().Err(err).Msg("could not resume scanning on startup")
		}
	}
}

func (c *Controller) run(events <-chan interface{}) {
	defer close(c.done)

	for e := range events {
		switch event := e.(type) {
		case bus.BluetoothState:
			c.handleBluetoothState(event)
		case bus.RangingTick:
			c.handleTick(event)
		}
	}
}

func (c *Controller) handleBluetoothState(event bus.BluetoothState) {
	c.mu.Lock()
	c.btEnabled = event.Enabled
	c.mu.Unlock()

	c.notifier.BluetoothStateChanged(event.Enabled)

	if !event.Enabled {
		c.StopScan()
	}
}

func (c *Controller) handleTick(event bus.RangingTick) {
	c.mu.Lock()
	active := c.intended && c.state == Ranging && !c.stopped
	c.mu.Unlock()

	if !active || len(event.Beacons) == 0 {
		return
	}

	c.scheduler.OnTick()
	c.prompt.Evaluate()
	c.storeBeaconsAround(event.Beacons)
}

func (c *Controller) storeBeaconsAround(observations []*models.Observation) {
	now := time.Now()
	records := make([]*models.Beacon, 0, len(observations))

	for _, obs := range observations {
		beacon, err := frame.Decode(obs, now)
		if err != nil {
			// A single undecodable frame never aborts the batch.
			c.logger.Debug().Err(err).
				Str("address", obs.Address).
				Msg("skipping observation")
			continue
		}
		records = append(records, beacon)
	}

	if len(records) == 0 {
		return
	}

	c.store.UpsertBatch(records)
	if c.sink != nil {
		c.sink.WriteBeacons(records, now)
	}
}

// StartScan verifies the preconditions and binds the radio driver. The
// named precondition error is returned and notified; nothing else
// changes on failure.
func (c *Controller) StartScan() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrServiceUnavailable
	}
	if !c.hasPermission {
		c.mu.Unlock()
		c.notifier.PermissionRequired()
		return ErrNoPermission
	}
	if !c.btEnabled {
		c.mu.Unlock()
		c.notifier.BluetoothDisabledError()
		return ErrBluetoothDisabled
	}
	if c.driver == nil {
		c.mu.Unlock()
		return ErrServiceUnavailable
	}

	c.intended = true
	needBind := !c.driver.IsBound(c)
	if needBind {
		c.state = Binding
	}
	c.mu.Unlock()

	if needBind {
		c.logger.Debug().Msg("binding radio driver")
		c.driver.Bind(c)
	} else {
		c.beginRanging()
	}

	c.notifier.ScanningStateChanged(true)
	return nil
}

// OnRadioServiceBound is the driver's bind-confirmed callback.
func (c *Controller) OnRadioServiceBound() {
	c.logger.Debug().Msg("radio driver bound, ready to range")
	c.beginRanging()
}

func (c *Controller) beginRanging() {
	c.mu.Lock()
	if c.stopped || !c.intended {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.driver.SetRangeNotifier(func(region string, beacons []*models.Observation) {
		c.events.Publish(bus.RangingTick{Region: region, Beacons: beacons})
	})

	if err := c.driver.StartRanging(c.cfg.Region); err != nil {
		// Non-fatal: stay out of Ranging, the user can retry.
		c.logger.Error().Err(err).Msg("failed to start ranging")
		return
	}

	c.mu.Lock()
	c.state = Ranging
	c.mu.Unlock()
}

// StopScan unbinds the driver and returns to Idle.
func (c *Controller) StopScan() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.intended = false
	c.state = Idle
	c.mu.Unlock()

	c.unbind()
	c.notifier.ScanningStateChanged(false)
}

// ToggleScan flips between scanning and idle.
func (c *Controller) ToggleScan() error {
	if c.IsScanning() {
		c.StopScan()
		return nil
	}
	return c.StartScan()
}

func (c *Controller) IsScanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intended && !c.stopped
}

// SetPermission records the externally managed location permission
// state. Granting it while scanning was requested re-triggers the scan.
func (c *Controller) SetPermission(granted bool) {
	c.mu.Lock()
	c.hasPermission = granted
	resume := granted && c.intended
	c.mu.Unlock()

	if resume {
		if err := c.StartScan(); err != nil {
			c.logger.Warn().Err(err).Msg("could not start scan after permission grant")
		}
	}
}

// OnRatingAnswer forwards a user's reply to the rating gate.
func (c *Controller) OnRatingAnswer(step int, answer bool) {
	c.prompt.OnAnswer(step, answer)
}

// ClearResults wipes every stored beacon record.
func (c *Controller) ClearResults() {
	c.store.ClearAll()
}

func (c *Controller) unbind() {
	if c.driver != nil && c.driver.IsBound(c) {
		c.logger.Debug().Msg("unbinding radio driver")
		c.driver.SetRangeNotifier(nil)
		c.driver.Unbind(c)
	}
}

// Stop is the lifecycle teardown: the intended-scanning flag is
// persisted for restart-on-reopen, all subscriptions are disposed and
// the delivery scheduler cancelled. Idempotent; callbacks arriving
// afterwards are no-ops.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	scanning := c.intended
	c.mu.Unlock()

	c.prefs.SetWasScanning(scanning)

	c.unbind()
	c.store.Unsubscribe(storeSubscriberID)
	c.scheduler.Close()

	if c.cancelSub != nil {
		c.cancelSub()
	}
	if c.done != nil {
		<-c.done
	}

	c.logger.Info().Bool("was_scanning", scanning).Msg("scan controller stopped")
}

// NotifierRatingView adapts the notification surface to the rating
// gate's view contract.
type NotifierRatingView struct {
	Notifier Notifier
	Redirect func()
}

func (v *NotifierRatingView) ShowStep(step int, visible bool) {
	v.Notifier.RatingStepRequested(step, visible)
}

func (v *NotifierRatingView) RedirectToStore() {
	if v.Redirect != nil {
		v.Redirect()
	}
}

var _ rating.View = (*NotifierRatingView)(nil)
