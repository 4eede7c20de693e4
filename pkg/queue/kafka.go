package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const (
	flushTimeoutMs   = 10000
	queueFullBackoff = time.Second
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// KafkaConfig holds the producer settings.
type KafkaConfig struct {
	Brokers  string `env:"KAFKA_BROKERS"`
	ClientID string `env:"KAFKA_CLIENT_ID" envDefault:"transfer-dashboard"`
	Topic    string `env:"KAFKA_TOPIC" envDefault:"transfer-dashboard.views"`
	SASL     SASLConfig
}

// LoadKafkaConfig loads the producer settings, SASL included, from environment variables.
func LoadKafkaConfig() (KafkaConfig, error) {
	var cfg KafkaConfig
	if err := env.Parse(&cfg); err != nil {
		return KafkaConfig{}, fmt.Errorf("failed to parse kafka config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether brokers are configured.
func (c KafkaConfig) Enabled() bool {
	return c.Brokers != ""
}

// ConfigMap builds the producer configuration. Delivery reports are requested so Publish
// can confirm every message.
func (c KafkaConfig) ConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":      c.Brokers,
		"client.id":              c.ClientID,
		"acks":                   "all",
		"enable.idempotence":     true,
		"go.delivery.reports":    true,
		"go.logs.channel.enable": true,
	}
	c.SASL.ApplyToConfigMap(cm)
	return cm
}

// KafkaPublisher is a QueuePublisher that waits for the delivery report of every message.
// A background goroutine drains producer events and client logs until Close.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *zap.SugaredLogger

	fatal    chan error
	closing  chan struct{}
	watchers sync.WaitGroup
	once     sync.Once
}

var _ QueuePublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a producer from conf. ctx bounds the background goroutines.
func NewKafkaPublisher(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to read go.logs.channel.enable: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		log:      log,
		fatal:    make(chan error, 1),
		closing:  make(chan struct{}),
	}

	kp.watchers.Add(1)
	go kp.watchEvents(ctx)
	if enabled, _ := logsEnabled.(bool); enabled {
		kp.watchers.Add(1)
		go kp.forwardLogs(ctx)
	}
	return kp, nil
}

// Publish produces msg and blocks until Kafka confirms delivery or ctx is done.
// When ctx ends first the message may still be delivered later.
func (q *KafkaPublisher) Publish(ctx context.Context, msg Msg) error {
	select {
	case <-q.closing:
		return ErrPublisherClosed
	default:
	}

	km := toKafkaMessage(msg)
	delivery := make(chan kafka.Event, 1)

	for {
		err := q.producer.Produce(km, delivery)
		if err == nil {
			break
		}
		if !isQueueFull(err) {
			return classifyProduceError(err)
		}
		q.log.Warnw("producer queue full, retrying", "topic", msg.Topic)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(queueFullBackoff):
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		return confirmDelivery(q.log, km, ev)
	}
}

// Errors reports a fatal producer error. After a value is received the publisher must
// be closed and recreated.
func (q *KafkaPublisher) Errors() <-chan error {
	return q.fatal
}

// Close stops the background goroutines and flushes queued messages until ctx is done.
// Calling Close more than once does nothing.
func (q *KafkaPublisher) Close(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("closing kafka publisher")
		close(q.closing)
		q.watchers.Wait()

		for remaining := q.producer.Flush(flushTimeoutMs); remaining > 0; remaining = q.producer.Flush(flushTimeoutMs) {
			if ctx.Err() != nil {
				q.log.Warnw("abandoning producer flush", "remaining", remaining)
				break
			}
			q.log.Warnw("producer queue not flushed, retrying", "remaining", remaining)
		}
		q.producer.Close()
		close(q.fatal)
	})
}

func (q *KafkaPublisher) watchEvents(ctx context.Context) {
	defer q.watchers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closing:
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}
			if err := q.handleEvent(ev); err != nil {
				q.reportFatal(err)
				return
			}
		}
	}
}

// handleEvent processes an event that was not routed to a delivery channel and returns
// an error only when the producer can no longer be used.
func (q *KafkaPublisher) handleEvent(ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		q.log.Warnw("unexpected delivery report outside of publish", "topicPartition", e.TopicPartition.String())
	case kafka.Error:
		if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
			return fmt.Errorf("kafka producer unusable (code %#x): %w", int(e.Code()), e)
		}
		q.log.Warnw("ignoring kafka error", "code", e.Code().String(), "error", e)
	default:
		q.log.Debugw("ignoring kafka event", "event", e.String())
	}
	return nil
}

func (q *KafkaPublisher) forwardLogs(ctx context.Context) {
	defer q.watchers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closing:
			return
		case entry, ok := <-q.producer.Logs():
			if !ok {
				return
			}
			q.log.Debugw("librdkafka", "level", entry.Level, "tag", entry.Tag, "message", entry.Message)
		}
	}
}

func (q *KafkaPublisher) reportFatal(err error) {
	select {
	case q.fatal <- err:
	default:
		q.log.Warnw("dropping fatal kafka error, one already pending", "error", err)
	}
}

func toKafkaMessage(msg Msg) *kafka.Message {
	topic := msg.Topic
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	slices.SortFunc(km.Headers, func(a, b kafka.Header) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})
	return km
}

func isQueueFull(err error) bool {
	var kerr kafka.Error
	return errors.As(err, &kerr) && kerr.Code() == kafka.ErrQueueFull
}

func classifyProduceError(err error) error {
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return fmt.Errorf("failed to produce: %w", err)
	}
	switch kerr.Code() {
	case kafka.ErrBrokerNotAvailable:
		return fmt.Errorf("broker not available: %w", err)
	case kafka.ErrInvalidMsgSize:
		return fmt.Errorf("invalid message size: %w", err)
	case kafka.ErrInvalidMsg:
		return fmt.Errorf("invalid message: %w", err)
	case kafka.ErrUnknownTopicOrPart:
		return fmt.Errorf("unknown topic or partition: %w", err)
	case kafka.ErrAuthentication:
		return fmt.Errorf("authentication error: %w", err)
	default:
		return fmt.Errorf("failed to produce: %w", err)
	}
}

func confirmDelivery(log *zap.SugaredLogger, sent *kafka.Message, ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		if err := e.TopicPartition.Error; err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		if !slices.Equal(e.Value, sent.Value) {
			return errors.New("delivery receipt does not match the published value")
		}
		log.Debugw("message delivered",
			"topic", *sent.TopicPartition.Topic,
			"partition", e.TopicPartition.Partition,
			"offset", int64(e.TopicPartition.Offset),
		)
		return nil
	case kafka.Error:
		return fmt.Errorf("kafka error: code=%d fatal=%t: %w", int(e.Code()), e.IsFatal(), e)
	default:
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}
}
