package mqtt

import (
	"sync"

	"github.com/rs/zerolog"

	"beacon-scanner/internal/scan"
)

// ScannerStatus is the retained status document other parties can
// subscribe to.
type ScannerStatus struct {
	BluetoothEnabled bool `json:"bluetooth_enabled"`
	Scanning         bool `json:"scanning"`
	ResultsEmpty     bool `json:"results_empty"`
	DeliveryFailures int  `json:"delivery_failures"`
	RatingStep       int  `json:"rating_step,omitempty"`
}

// StatusPublisher mirrors the notification surface onto a retained MQTT
// status topic.
type StatusPublisher struct {
	client       *Client
	topicManager *TopicManager
	logger       zerolog.Logger

	mu     sync.Mutex
	status ScannerStatus
}

func NewStatusPublisher(client *Client, topicManager *TopicManager, logger zerolog.Logger) *StatusPublisher {
	return &StatusPublisher{
		client:       client,
		topicManager: topicManager,
		logger:       logger,
		status:       ScannerStatus{BluetoothEnabled: true, ResultsEmpty: true},
	}
}

func (p *StatusPublisher) publish() {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()

	topic := p.topicManager.GetStatusTopic()
	if err := p.client.PublishJSON(topic, status, true); err != nil {
		p.logger.Warn().Err(err).Msg("failed to publish scanner status")
	}
}

func (p *StatusPublisher) BluetoothStateChanged(enabled bool) {
	p.mu.Lock()
	p.status.BluetoothEnabled = enabled
	p.mu.Unlock()
	p.publish()
}

func (p *StatusPublisher) ScanningStateChanged(scanning bool) {
	p.mu.Lock()
	p.status.Scanning = scanning
	p.mu.Unlock()
	p.publish()
}

func (p *StatusPublisher) EmptyStateChanged(empty bool) {
	p.mu.Lock()
	p.status.ResultsEmpty = empty
	p.mu.Unlock()
	p.publish()
}

func (p *StatusPublisher) DeliveryFailed() {
	p.mu.Lock()
	p.status.DeliveryFailures++
	p.mu.Unlock()
	p.publish()
}

func (p *StatusPublisher) RatingStepRequested(step int, visible bool) {
	p.mu.Lock()
	if visible {
		p.status.RatingStep = step
	} else {
		p.status.RatingStep = 0
	}
	p.mu.Unlock()
	p.publish()
}

func (p *StatusPublisher) PermissionRequired() {
	p.logger.Warn().Msg("scan requested without location permission")
}

func (p *StatusPublisher) BluetoothDisabledError() {
	p.logger.Warn().Msg("scan requested while bluetooth is disabled")
}

var _ scan.Notifier = (*StatusPublisher)(nil)
