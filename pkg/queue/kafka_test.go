package queue

import (
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestKafkaConfig(t *testing.T) {
	cfg := KafkaConfig{Brokers: "localhost:9092", ClientID: "dash", Topic: "views"}
	require.True(t, cfg.Enabled())
	require.False(t, KafkaConfig{}.Enabled())

	cm := cfg.ConfigMap()
	servers, err := cm.Get("bootstrap.servers", "")
	require.NoError(t, err)
	require.Equal(t, "localhost:9092", servers)

	reports, err := cm.Get("go.delivery.reports", false)
	require.NoError(t, err)
	require.Equal(t, true, reports)

	_, present := (*cm)["sasl.username"]
	require.False(t, present, "sasl settings must be absent without credentials")
}

func TestSASLConfig_ApplyToConfigMap(t *testing.T) {
	cfg := KafkaConfig{
		Brokers: "localhost:9092",
		SASL: SASLConfig{
			Username:         "user",
			Password:         "secret",
			Mechanism:        "SCRAM-SHA-256",
			SecurityProtocol: "SASL_PLAINTEXT",
		},
	}
	cm := cfg.ConfigMap()

	require.Equal(t, "SASL_PLAINTEXT", (*cm)["security.protocol"])
	require.Equal(t, "SCRAM-SHA-256", (*cm)["sasl.mechanisms"])
	require.Equal(t, "user", (*cm)["sasl.username"])
	require.Equal(t, "secret", (*cm)["sasl.password"])

	partial := SASLConfig{Username: "user"}
	require.False(t, partial.Enabled())
}

func TestLoadKafkaConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker:9092")
	t.Setenv("KAFKA_SASL_USERNAME", "user")
	t.Setenv("KAFKA_SASL_PASSWORD", "secret")

	cfg, err := LoadKafkaConfig()
	require.NoError(t, err)
	require.True(t, cfg.Enabled())
	require.Equal(t, "transfer-dashboard", cfg.ClientID)
	require.Equal(t, "transfer-dashboard.views", cfg.Topic)
	require.True(t, cfg.SASL.Enabled())
	require.Equal(t, "SCRAM-SHA-512", cfg.SASL.Mechanism)
	require.Equal(t, "SASL_SSL", cfg.SASL.SecurityProtocol)
}

func TestToKafkaMessage(t *testing.T) {
	km := toKafkaMessage(Msg{
		Topic:   "views",
		Key:     []byte("recent"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"view": "recent", "token": "3"},
	})

	require.Equal(t, "views", *km.TopicPartition.Topic)
	require.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	require.Equal(t, []byte("recent"), km.Key)
	require.Equal(t, []kafka.Header{
		{Key: "token", Value: []byte("3")},
		{Key: "view", Value: []byte("recent")},
	}, km.Headers)
}

func TestClassifyProduceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "broker down", err: kafka.NewError(kafka.ErrBrokerNotAvailable, "down", false), want: "broker not available"},
		{name: "too large", err: kafka.NewError(kafka.ErrInvalidMsgSize, "big", false), want: "invalid message size"},
		{name: "invalid", err: kafka.NewError(kafka.ErrInvalidMsg, "bad", false), want: "invalid message"},
		{name: "unknown topic", err: kafka.NewError(kafka.ErrUnknownTopicOrPart, "nope", false), want: "unknown topic or partition"},
		{name: "auth", err: kafka.NewError(kafka.ErrAuthentication, "denied", false), want: "authentication error"},
		{name: "other kafka", err: kafka.NewError(kafka.ErrTimedOut, "slow", false), want: "failed to produce"},
		{name: "not kafka", err: errors.New("boom"), want: "failed to produce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyProduceError(tt.err)
			require.ErrorContains(t, err, tt.want)
			require.ErrorIs(t, err, tt.err)
		})
	}

	require.True(t, isQueueFull(kafka.NewError(kafka.ErrQueueFull, "full", false)))
	require.False(t, isQueueFull(errors.New("full")))
}

func TestConfirmDelivery(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	topic := "views"
	sent := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          []byte("payload"),
	}

	tests := []struct {
		name        string
		ev          kafka.Event
		errContains string
	}{
		{
			name: "delivered",
			ev: &kafka.Message{
				TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 2, Offset: 10},
				Value:          []byte("payload"),
			},
		},
		{
			name: "delivery error",
			ev: &kafka.Message{
				TopicPartition: kafka.TopicPartition{Topic: &topic, Error: errors.New("timed out")},
				Value:          []byte("payload"),
			},
			errContains: "delivery failed",
		},
		{
			name: "mismatched receipt",
			ev: &kafka.Message{
				TopicPartition: kafka.TopicPartition{Topic: &topic},
				Value:          []byte("other"),
			},
			errContains: "does not match",
		},
		{
			name:        "kafka error",
			ev:          kafka.NewError(kafka.ErrAllBrokersDown, "down", true),
			errContains: "fatal=true",
		},
		{
			name:        "unexpected event",
			ev:          kafka.OffsetsCommitted{},
			errContains: "unexpected delivery event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := confirmDelivery(log, sent, tt.ev)
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errContains)
		})
	}
}
