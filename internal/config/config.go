package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Live sources.
const (
	SourceKafka = "kafka"
	SourceMQTT  = "mqtt"
)

// Record sinks.
const (
	SinkInflux = "influx"
	SinkSQLite = "sqlite"
	SinkKafka  = "kafka"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Source string
	Sink   string

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
	SQLitePath   string

	Measurement    string
	Timezone       string
	HostTag        string
	WriteBatchSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Daily rain reconstruction schedule.
	AggregatorEnabled  bool
	AggregatorSchedule string
	AggregatorHostTag  string
}

// LoadDotEnv seeds the environment from a .env file when one exists.
// Variables already set take precedence.
func LoadDotEnv(logger *slog.Logger, paths ...string) {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mqttPort, err := parsePositiveInt("MQTT_PORT", "1883")
	if err != nil {
		return nil, err
	}

	writeBatchSize, err := parsePositiveInt("WRITE_BATCH_SIZE", "1000")
	if err != nil {
		return nil, err
	}

	aggregatorEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("AGGREGATOR_ENABLED", "true"))
	if err != nil {
		return nil, errors.New("invalid AGGREGATOR_ENABLED: must be a boolean")
	}

	cfg := &Config{
		Source:             sharedcfg.EnvOrDefault("SOURCE", SourceKafka),
		Sink:               sharedcfg.EnvOrDefault("SINK", SinkInflux),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-station-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "corrected-station-readings"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "weather-station-etl"),
		MQTTBroker:         sharedcfg.EnvOrDefault("MQTT_BROKER", "localhost"),
		MQTTPort:           mqttPort,
		MQTTTopic:          sharedcfg.EnvOrDefault("MQTT_TOPIC", "rtl_433/weather"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "weather-station-etl"),
		InfluxURL:          sharedcfg.EnvOrDefault("INFLUXDB_URL", "http://localhost:8086"),
		InfluxToken:        os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:          sharedcfg.EnvOrDefault("INFLUXDB_ORG", "home"),
		InfluxBucket:       sharedcfg.EnvOrDefault("INFLUXDB_BUCKET", "weather"),
		SQLitePath:         sharedcfg.EnvOrDefault("SQLITE_PATH", "weather.db"),
		Measurement:        sharedcfg.EnvOrDefault("MEASUREMENT", "rtl433"),
		Timezone:           sharedcfg.EnvOrDefault("TZ", "Europe/Madrid"),
		HostTag:            sharedcfg.EnvOrDefault("HOST_TAG", "weather-station-etl"),
		WriteBatchSize:     writeBatchSize,
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		AggregatorEnabled:  aggregatorEnabled,
		AggregatorSchedule: sharedcfg.EnvOrDefault("AGGREGATOR_SCHEDULE", "5 0 * * *"),
		AggregatorHostTag:  sharedcfg.EnvOrDefault("AGGREGATOR_HOST_TAG", "weather-station"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
	case SourceMQTT:
	default:
		return fmt.Errorf("invalid SOURCE %q: must be kafka or mqtt", c.Source)
	}

	switch c.Sink {
	case SinkInflux:
		if c.InfluxToken == "" {
			return errors.New("INFLUXDB_TOKEN is required for the influx sink")
		}
	case SinkSQLite:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
	default:
		return fmt.Errorf("invalid SINK %q: must be influx, sqlite or kafka", c.Sink)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TZ %q: %w", c.Timezone, err)
	}
	if c.AggregatorEnabled {
		if _, err := cron.ParseStandard(c.AggregatorSchedule); err != nil {
			return fmt.Errorf("invalid AGGREGATOR_SCHEDULE: %w", err)
		}
	}
	return nil
}

func parsePositiveInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
