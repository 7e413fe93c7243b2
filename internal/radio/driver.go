// Package radio adapts the MQTT ingress of raw advertisement frames to
// the scan.RadioDriver contract. Radio sources publish observation
// batches on <base>/v1/advertisements/<source>; adapter on/off state
// arrives on <base>/v1/adapter/state. Both are fanned onto the event
// bus, never handled inline on the paho callback goroutine beyond
// decoding the JSON envelope.
package radio

import (
	"encoding/json"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"beacon-scanner/internal/bus"
	"beacon-scanner/internal/models"
	"beacon-scanner/internal/mqtt"
	"beacon-scanner/internal/scan"
)

// AdvertisementMessage is one published ranging tick from a radio
// source.
type AdvertisementMessage struct {
	Region  string                `json:"region"`
	Beacons []*models.Observation `json:"beacons"`
}

// AdapterStateMessage reports the radio adapter being switched on or
// off.
type AdapterStateMessage struct {
	Enabled bool `json:"enabled"`
}

type Driver struct {
	client       *mqtt.Client
	topicManager *mqtt.TopicManager
	events       *bus.Bus
	logger       zerolog.Logger

	mu       sync.Mutex
	listener scan.Listener
	notifier scan.RangeNotifier
	ranging  bool
	region   string
}

func NewDriver(client *mqtt.Client, topicManager *mqtt.TopicManager, events *bus.Bus, logger zerolog.Logger) *Driver {
	return &Driver{
		client:       client,
		topicManager: topicManager,
		events:       events,
		logger:       logger,
	}
}

// Start subscribes to the adapter-state topic. Bluetooth on/off events
// flow into the bus independently of any bind state.
func (d *Driver) Start() error {
	return d.client.Subscribe(d.topicManager.GetAdapterStateTopic(), d.handleAdapterState)
}

// Bind registers the listener and confirms asynchronously, mirroring a
// service-connection callback.
func (d *Driver) Bind(listener scan.Listener) {
	d.mu.Lock()
	if d.listener != nil {
		d.mu.Unlock()
		return
	}
	d.listener = listener
	d.mu.Unlock()

	go listener.OnRadioServiceBound()
}

func (d *Driver) Unbind(listener scan.Listener) {
	d.mu.Lock()
	if d.listener != listener {
		d.mu.Unlock()
		return
	}
	d.listener = nil
	wasRanging := d.ranging
	d.ranging = false
	d.mu.Unlock()

	if wasRanging {
		if err := d.client.Unsubscribe(d.topicManager.GetAdvertisementTopic()); err != nil {
			d.logger.Warn().Err(err).Msg("failed to unsubscribe from advertisements")
		}
	}
}

func (d *Driver) IsBound(listener scan.Listener) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener == listener
}

func (d *Driver) SetRangeNotifier(notifier scan.RangeNotifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifier = notifier
}

func (d *Driver) StartRanging(region string) error {
	d.mu.Lock()
	if d.ranging {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.client.Subscribe(d.topicManager.GetAdvertisementTopic(), d.handleAdvertisement); err != nil {
		return err
	}

	d.mu.Lock()
	d.ranging = true
	d.region = region
	d.mu.Unlock()

	d.logger.Info().Str("region", region).Msg("ranging started")
	return nil
}

func (d *Driver) handleAdvertisement(client pahomqtt.Client, msg pahomqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	if len(payload) == 0 {
		return
	}

	source, err := d.topicManager.ExtractSourceFromTopic(topic)
	if err != nil {
		d.logger.Error().Err(err).Str("topic", topic).Msg("could not extract source from topic")
		return
	}

	var message AdvertisementMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		d.logger.Error().Err(err).
			Str("topic", topic).
			Msg("could not parse advertisement batch")
		return
	}

	d.mu.Lock()
	notifier := d.notifier
	ranging := d.ranging
	region := message.Region
	if region == "" {
		region = d.region
	}
	d.mu.Unlock()

	if !ranging || notifier == nil {
		return
	}

	d.logger.Debug().
		Str("source", source).
		Int("beacons", len(message.Beacons)).
		Msg("received ranging tick")

	notifier(region, message.Beacons)
}

func (d *Driver) handleAdapterState(client pahomqtt.Client, msg pahomqtt.Message) {
	var state AdapterStateMessage
	if err := json.Unmarshal(msg.Payload(), &state); err != nil {
		d.logger.Error().Err(err).Msg("could not parse adapter state")
		return
	}

	d.events.Publish(bus.BluetoothState{Enabled: state.Enabled})
}

var _ scan.RadioDriver = (*Driver)(nil)
