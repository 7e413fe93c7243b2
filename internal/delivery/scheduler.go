package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/config"
	"beacon-scanner/internal/models"
	"beacon-scanner/internal/prefs"
	"beacon-scanner/internal/store"
)

// MaxRetries bounds the retry loop: one initial attempt plus up to
// MaxRetries retries, with waits of 4^1, 4^2, ... backoff units in
// between.
const MaxRetries = 3

// Scheduler counts ranging ticks and, every Frequency ticks while
// logging is enabled, flushes the records observed since the last
// successful delivery to the collector. At most one flush is in flight;
// a trigger racing an outstanding flush is coalesced and the counter
// simply re-arms.
type Scheduler struct {
	store     store.Store
	prefs     prefs.Prefs
	transport Transport
	cfg       config.LoggingConfig
	onFailure func()
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	ticks    int
	inFlight bool
	closed   bool
	timer    *time.Timer
}

func NewScheduler(
	st store.Store,
	pf prefs.Prefs,
	transport Transport,
	cfg config.LoggingConfig,
	onFailure func(),
	logger zerolog.Logger,
) *Scheduler {
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:     st,
		prefs:     pf,
		transport: transport,
		cfg:       cfg,
		onFailure: onFailure,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnTick is called once per non-empty ranging tick on the consumer
// goroutine. The counter only advances while logging is enabled and an
// endpoint is configured.
func (s *Scheduler) OnTick() {
	s.mu.Lock()

	if s.closed || !s.cfg.Enabled || s.cfg.Endpoint == "" {
		s.mu.Unlock()
		return
	}

	s.ticks++
	if s.ticks < s.cfg.Frequency {
		s.mu.Unlock()
		return
	}
	s.ticks = 0

	if s.inFlight {
		// An earlier flush is still retrying; the counter re-arms and
		// triggers again later.
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	go s.flush()
}

func (s *Scheduler) flush() {
	flushStart := time.Now().UnixMilli()
	previousCursor := s.prefs.LastDeliveryAt()

	records, err := s.store.Query(s.ctx, previousCursor)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query unlogged beacons")
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		return
	}

	// The cursor moves to the flush start before the request is
	// dispatched, so records observed during an in-flight delivery stay
	// in the next window. A terminal failure reverts it.
	s.prefs.SetLastDeliveryAt(flushStart)

	request := &models.LoggingRequest{
		DeviceName: s.cfg.DeviceName,
		Beacons:    records,
	}

	s.logger.Debug().
		Int("beacons", len(records)).
		Int64("since", previousCursor).
		Msg("flushing logs to collector")

	s.attempt(request, 1, previousCursor)
}

func (s *Scheduler) attempt(request *models.LoggingRequest, attempt int, previousCursor int64) {
	err := s.transport.Post(s.ctx, s.cfg.Endpoint, request)

	s.mu.Lock()
	if s.closed {
		// Torn down while the request was on the wire; the result is
		// discarded.
		s.mu.Unlock()
		return
	}

	if err == nil {
		s.inFlight = false
		s.mu.Unlock()
		s.logger.Info().
			Int("beacons", len(request.Beacons)).
			Int("attempt", attempt).
			Msg("delivered logs to collector")
		return
	}

	if attempt > MaxRetries {
		s.inFlight = false
		s.mu.Unlock()

		s.prefs.SetLastDeliveryAt(previousCursor)
		s.logger.Error().Err(err).
			Int("attempts", attempt).
			Msg("delivery failed terminally, window re-qualifies on next flush")
		if s.onFailure != nil {
			s.onFailure()
		}
		return
	}

	delay := s.cfg.BackoffUnit * time.Duration(backoffFactor(attempt))
	s.logger.Warn().Err(err).
		Int("attempt", attempt).
		Dur("retry_in", delay).
		Msg("delivery attempt failed, scheduling retry")

	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.attempt(request, attempt+1, previousCursor)
	})
	s.mu.Unlock()
}

// backoffFactor is 4^attempt: waits of 4, 16, 64 units before attempts
// 2, 3 and 4.
func backoffFactor(attempt int) int64 {
	return 1 << (2 * attempt)
}

// Close cancels any pending backoff timer and in-flight request. A
// request already on the wire may still complete; its result is then
// discarded. Safe to call repeatedly.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.cancel()
}
