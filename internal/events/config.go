// Package events publishes job-completion notifications to Kafka so
// downstream consumers (the forecasting service that turns a reach's map
// library into a forecast) can subscribe instead of polling the job store.
package events

import (
	"strings"

	"github.com/floodlib/ripple-engine/internal/config"
)

const (
	defaultBrokers = "localhost:9092"
	defaultTopic   = "fim_lib.ready"
)

// Config holds the Kafka producer configuration for the events publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads publisher configuration from environment variables.
// Publishing is optional: an empty KAFKA_BROKERS disables the publisher
// entirely (NewPublisher returns a no-op).
func LoadConfig() *Config {
	brokers := config.GetEnvStr("KAFKA_BROKERS", defaultBrokers)

	list := make([]string, 0, 1)

	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}

	return &Config{
		Brokers: list,
		Topic:   config.GetEnvStr("KAFKA_FIM_LIB_TOPIC", defaultTopic),
	}
}
