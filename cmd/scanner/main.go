package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"beacon-scanner/internal/bus"
	"beacon-scanner/internal/config"
	"beacon-scanner/internal/database/influx"
	"beacon-scanner/internal/database/postgres"
	"beacon-scanner/internal/delivery"
	"beacon-scanner/internal/logger"
	"beacon-scanner/internal/mqtt"
	"beacon-scanner/internal/prefs"
	"beacon-scanner/internal/radio"
	"beacon-scanner/internal/rating"
	"beacon-scanner/internal/scan"
	"beacon-scanner/internal/store"
)

// ratingPromptMinTicks is how many non-empty ranging ticks have to pass
// before the feedback prompt becomes eligible.
const ratingPromptMinTicks = 50

type Application struct {
	config *config.Config

	postgresDB *postgres.PostgresDB
	influxDB   *influx.InfluxDB

	beaconStore store.Store
	preferences prefs.Prefs

	mqttClient   *mqtt.Client
	topicManager *mqtt.TopicManager
	driver       *radio.Driver

	events     *bus.Bus
	scheduler  *delivery.Scheduler
	prompt     *rating.Prompt
	controller *scan.Controller

	shutdownChan chan os.Signal
	ctx          context.Context
	cancelFunc   context.CancelFunc
}

func main() {
	app := &Application{}

	if err := app.initialize(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := app.run(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func (app *Application) initialize() error {
	var err error

	app.config, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	logger.NewLogger(app.config.Logger)
	log.Info().
		Str("component", "main").
		Str("version", "1.0.0").
		Msg("Setting up scanner...")

	app.ctx, app.cancelFunc = context.WithCancel(context.Background())
	app.shutdownChan = make(chan os.Signal, 1)
	signal.Notify(app.shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.initializeDatabases(); err != nil {
		return fmt.Errorf("error while initializing databases: %w", err)
	}

	if err := app.initializeMQTT(); err != nil {
		return fmt.Errorf("error while initializing MQTT: %w", err)
	}

	if err := app.initializePipeline(); err != nil {
		return fmt.Errorf("error while initializing scan pipeline: %w", err)
	}

	log.Info().Msg("Successfully initialized application")
	return nil
}

func (app *Application) initializeDatabases() error {
	if app.config.Postgres.Enabled {
		postgresDB, err := postgres.NewConnection(app.config.Postgres)
		if err != nil {
			return fmt.Errorf("could not connect to PostgreSQL: %w", err)
		}
		app.postgresDB = postgresDB
		app.beaconStore = store.NewGormStore(postgresDB.GetDB(), logger.GetLogger("beacon-store"))
		app.preferences = prefs.NewGormPrefs(postgresDB.GetDB(), logger.GetLogger("preferences"))
	} else {
		app.beaconStore = store.NewMemoryStore(logger.GetLogger("beacon-store"))
		app.preferences = prefs.NewMemoryPrefs()
	}

	if app.config.InfluxDB.Enabled {
		influxDB, err := influx.NewConnection(&app.config.InfluxDB)
		if err != nil {
			return fmt.Errorf("could not connect to InfluxDB: %w", err)
		}
		app.influxDB = influxDB
	}

	log.Info().
		Str("component", "main").
		Bool("postgres", app.config.Postgres.Enabled).
		Bool("influxdb", app.config.InfluxDB.Enabled).
		Msg("Successfully initialized storage")
	return nil
}

func (app *Application) initializeMQTT() error {
	app.topicManager = &mqtt.TopicManager{BaseTopic: app.config.MQTT.BaseTopic}
	app.mqttClient = mqtt.NewClient(app.config.MQTT, logger.GetLogger("mqtt-client"))

	connectCtx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	if err := app.mqttClient.Connect(connectCtx); err != nil {
		return fmt.Errorf("could not connect to MQTT broker: %w", err)
	}

	log.Info().
		Str("component", "main").
		Msg("Successfully initialized MQTT client")

	return nil
}

func (app *Application) initializePipeline() error {
	app.events = bus.New(logger.GetLogger("event-bus"))

	app.driver = radio.NewDriver(
		app.mqttClient,
		app.topicManager,
		app.events,
		logger.GetLogger("radio-driver"),
	)
	if err := app.driver.Start(); err != nil {
		return fmt.Errorf("could not watch radio adapter state: %w", err)
	}

	statusPublisher := mqtt.NewStatusPublisher(
		app.mqttClient,
		app.topicManager,
		logger.GetLogger("status-publisher"),
	)
	notifier := scan.MultiNotifier{
		scan.NewLogNotifier(logger.GetLogger("notifier")),
		statusPublisher,
	}

	transport := delivery.NewHTTPTransport(app.config.Logging.Timeout, logger.GetLogger("delivery-transport"))
	app.scheduler = delivery.NewScheduler(
		app.beaconStore,
		app.preferences,
		transport,
		app.config.Logging,
		notifier.DeliveryFailed,
		logger.GetLogger("delivery-scheduler"),
	)

	ratingLogger := logger.GetLogger("rating-prompt")
	app.prompt = rating.NewPrompt(
		rating.NewPrefsPolicy(app.preferences, ratingPromptMinTicks),
		&scan.NotifierRatingView{
			Notifier: notifier,
			Redirect: func() {
				ratingLogger.Info().Msg("store redirect requested")
			},
		},
		ratingLogger,
	)

	var sink scan.ObservationSink
	if app.influxDB != nil {
		sink = influx.NewObservationWriter(app.influxDB.GetWriteAPI(), logger.GetLogger("observation-writer"))
	}

	app.controller = scan.NewController(
		app.driver,
		app.events,
		app.beaconStore,
		app.scheduler,
		app.prompt,
		app.preferences,
		notifier,
		sink,
		app.config.Scanner,
		logger.GetLogger("scan-controller"),
	)
	app.controller.Start()

	return nil
}

func (app *Application) run() error {
	select {
	case sig := <-app.shutdownChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-app.ctx.Done():
		log.Info().Msg("context cancelled, shutting down application")
	}

	return app.shutdown()
}

func (app *Application) shutdown() error {
	if app.controller != nil {
		app.controller.Stop()
	}

	if app.events != nil {
		app.events.Close()
	}

	if app.beaconStore != nil {
		app.beaconStore.Close()
	}

	if app.mqttClient != nil {
		app.mqttClient.Disconnect()
	}

	if app.influxDB != nil {
		app.influxDB.Close()
	}

	if app.postgresDB != nil {
		if err := app.postgresDB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		}
	}

	app.cancelFunc()
	return nil
}
