package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/events"
)

func TestNewPublisher_NoBrokersReturnsNoop(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	pub := events.NewPublisher(&events.Config{})

	_, ok := pub.(events.NoopPublisher)
	assert.True(t, ok)

	require.NoError(t, pub.PublishFimLibReady(context.Background(), events.FimLibReady{ReachID: "1010"}))
	require.NoError(t, pub.Close())
}

func TestLoadConfig_DefaultsWhenUnset(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_FIM_LIB_TOPIC", "")

	cfg := events.LoadConfig()
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "fim_lib.ready", cfg.Topic)
}

func TestLoadConfig_ParsesBrokerList(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")

	cfg := events.LoadConfig()
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Brokers)
}
