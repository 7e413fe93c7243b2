package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MQTT     MQTTConfig     `json:"mqtt"`
	Postgres PostgresConfig `json:"postgres"`
	InfluxDB InfluxConfig   `json:"influxdb"`
	Logger   LoggerConfig   `json:"logger"`
	Logging  LoggingConfig  `json:"logging"`
	Scanner  ScannerConfig  `json:"scanner"`
}

type MQTTConfig struct {
	Host                 string        `json:"host"`
	Port                 int           `json:"port"`
	Username             string        `json:"username"`
	Password             string        `json:"password"`
	ClientID             string        `json:"client_id"`
	BaseTopic            string        `json:"base_topic"`
	QoS                  byte          `json:"qos"`
	KeepAlive            int           `json:"keep_alive"`
	AutoReconnect        bool          `json:"auto_reconnect"`
	MaxReconnectInterval time.Duration `json:"max_reconnect_interval"`
	CleanSession         bool          `json:"clean_session"`
}

type PostgresConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Dsn      string `json:"dsn"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
	TimeZone string `json:"timezone"`
}

type InfluxConfig struct {
	Enabled      bool   `json:"enabled"`
	URL          string `json:"url"`
	Token        string `json:"token"`
	Organization string `json:"organization"`
	Bucket       string `json:"bucket"`
}

type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoggingConfig configures delivery of accumulated observations to the
// remote collector.
type LoggingConfig struct {
	Enabled     bool          `json:"enabled"`
	Endpoint    string        `json:"endpoint"`
	Frequency   int           `json:"frequency"`
	DeviceName  string        `json:"device_name"`
	Timeout     time.Duration `json:"timeout"`
	BackoffUnit time.Duration `json:"backoff_unit"`
}

type ScannerConfig struct {
	Region             string `json:"region"`
	ScanOnOpen         bool   `json:"scan_on_open"`
	LocationPermission bool   `json:"location_permission"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		MQTT: MQTTConfig{
			Host:                 getEnv("MQTT_HOST", "localhost"),
			Port:                 getEnvAsInt("MQTT_PORT", 1883),
			Username:             getEnv("MQTT_USERNAME", ""),
			Password:             getEnv("MQTT_PASSWORD", ""),
			ClientID:             getEnv("MQTT_CLIENT_ID", "beacon-scanner"),
			BaseTopic:            getEnv("MQTT_BASE_TOPIC", "beacons/scanner"),
			QoS:                  byte(getEnvAsInt("MQTT_QOS", 1)),
			KeepAlive:            getEnvAsInt("MQTT_KEEP_ALIVE", 60),
			AutoReconnect:        getEnvAsBool("MQTT_AUTO_RECONNECT", true),
			MaxReconnectInterval: getEnvAsDuration("MQTT_MAX_RECONNECT_INTERVAL", "10s"),
			CleanSession:         getEnvAsBool("MQTT_CLEAN_SESSION", true),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvAsBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DATABASE", "beacon_scanner"),
			SSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		InfluxDB: InfluxConfig{
			Enabled:      getEnvAsBool("INFLUXDB_ENABLED", false),
			URL:          getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Token:        getEnv("INFLUXDB_TOKEN", ""),
			Organization: getEnv("INFLUXDB_ORG", "beacon_scanner"),
			Bucket:       getEnv("INFLUXDB_BUCKET", "observations"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Logging: LoggingConfig{
			Enabled:     getEnvAsBool("LOGGING_ENABLED", false),
			Endpoint:    getEnv("LOGGING_ENDPOINT", ""),
			Frequency:   getEnvAsInt("LOGGING_FREQUENCY", 5),
			DeviceName:  getEnv("LOGGING_DEVICE_NAME", ""),
			Timeout:     getEnvAsDuration("LOGGING_TIMEOUT", "30s"),
			BackoffUnit: getEnvAsDuration("LOGGING_BACKOFF_UNIT", "1s"),
		},
		Scanner: ScannerConfig{
			Region:             getEnv("SCANNER_REGION", "beacon-scanner"),
			ScanOnOpen:         getEnvAsBool("SCANNER_SCAN_ON_OPEN", false),
			LocationPermission: getEnvAsBool("SCANNER_LOCATION_PERMISSION", true),
		},
	}

	baseTopic, found := strings.CutSuffix(config.MQTT.BaseTopic, "/")
	if found {
		config.MQTT.BaseTopic = baseTopic
	}

	config.Postgres.Dsn = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		config.Postgres.Host, config.Postgres.Port, config.Postgres.User,
		config.Postgres.Password, config.Postgres.Database,
		func() string {
			if config.Postgres.SSLMode == "false" || config.Postgres.SSLMode == "" {
				return "disable"
			}
			return config.Postgres.SSLMode
		}(),
		config.Postgres.TimeZone,
	)

	return config, config.validate()
}

func (c *Config) validate() error {
	if c.Logging.Frequency <= 0 {
		return fmt.Errorf("LOGGING_FREQUENCY has to be a positive tick count")
	}
	if c.Logging.Enabled && c.Logging.Endpoint == "" {
		return fmt.Errorf("LOGGING_ENDPOINT has to be set when logging is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.Token == "" {
		return fmt.Errorf("INFLUXDB_TOKEN has to be set when InfluxDB is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
