package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

const (
	defaultBacklog        = 64
	defaultPublishTimeout = 10 * time.Second
)

// SnapshotMessage is the payload published for every Ready view.
type SnapshotMessage struct {
	Contract  string     `json:"contract"`
	Kind      views.Kind `json:"kind"`
	Token     uint64     `json:"token"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Result    any        `json:"result"`
}

// SnapshotPublisher exports Ready view snapshots to a topic, keyed by view kind so every
// view lands on a stable partition.
type SnapshotPublisher struct {
	pub      QueuePublisher
	topic    string
	contract string
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics // nil if metrics disabled
	timeout  time.Duration

	backlog chan views.Snapshot
}

// SnapshotOption configures a SnapshotPublisher.
type SnapshotOption func(*SnapshotPublisher)

// WithMetrics enables metrics collection for the publisher.
func WithMetrics(m *metrics.Metrics) SnapshotOption {
	return func(s *SnapshotPublisher) {
		s.metrics = m
	}
}

// WithPublishTimeout bounds a single publish.
func WithPublishTimeout(d time.Duration) SnapshotOption {
	return func(s *SnapshotPublisher) {
		s.timeout = d
	}
}

// WithBacklog sets how many snapshots Enqueue buffers before dropping.
func WithBacklog(n int) SnapshotOption {
	return func(s *SnapshotPublisher) {
		s.backlog = make(chan views.Snapshot, n)
	}
}

// NewSnapshotPublisher creates a publisher for topic. contract is copied into every message.
func NewSnapshotPublisher(
	pub QueuePublisher,
	topic string,
	contract string,
	log *zap.SugaredLogger,
	opts ...SnapshotOption,
) (*SnapshotPublisher, error) {
	if pub == nil {
		return nil, errors.New("invalid publisher: must not be nil")
	}
	if topic == "" {
		return nil, errors.New("invalid topic: must not be empty")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &SnapshotPublisher{
		pub:      pub,
		topic:    topic,
		contract: contract,
		log:      log,
		timeout:  defaultPublishTimeout,
		backlog:  make(chan views.Snapshot, defaultBacklog),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout <= 0 {
		return nil, fmt.Errorf("invalid publish timeout: must be greater than 0, got %s", s.timeout)
	}
	return s, nil
}

// Message builds the queue message for a snapshot.
func (s *SnapshotPublisher) Message(snap views.Snapshot) (Msg, error) {
	value, err := json.Marshal(SnapshotMessage{
		Contract:  s.contract,
		Kind:      snap.Kind,
		Token:     snap.Token,
		UpdatedAt: snap.UpdatedAt,
		Result:    snap.Result,
	})
	if err != nil {
		return Msg{}, fmt.Errorf("failed to encode %s snapshot: %w", snap.Kind, err)
	}
	return Msg{
		Topic: s.topic,
		Key:   []byte(snap.Kind),
		Value: value,
		Headers: map[string]string{
			"view":  string(snap.Kind),
			"token": strconv.FormatUint(snap.Token, 10),
		},
	}, nil
}

// Publish exports one snapshot synchronously. Snapshots that are not Ready are skipped.
func (s *SnapshotPublisher) Publish(ctx context.Context, snap views.Snapshot) error {
	if snap.State != views.StateReady {
		return nil
	}
	msg, err := s.Message(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = s.pub.Publish(ctx, msg)
	s.metrics.RecordSnapshotPublish(err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to publish %s snapshot: %w", snap.Kind, err)
	}
	s.log.Debugw("published snapshot", "view", string(snap.Kind), "token", snap.Token, "bytes", len(msg.Value))
	return nil
}

// Enqueue hands a snapshot to Run without blocking. It is meant to be registered with
// views.Board.OnChange; snapshots are dropped when the backlog is full.
func (s *SnapshotPublisher) Enqueue(snap views.Snapshot) {
	if snap.State != views.StateReady {
		return
	}
	select {
	case s.backlog <- snap:
	default:
		s.log.Warnw("snapshot backlog full, dropping snapshot", "view", string(snap.Kind), "token", snap.Token)
		s.metrics.IncError(metrics.ErrTypeExportDropped)
	}
}

// Run publishes enqueued snapshots until ctx is done. Publish failures are logged and
// do not stop the loop.
func (s *SnapshotPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-s.backlog:
			if err := s.Publish(ctx, snap); err != nil {
				s.log.Errorw("snapshot export failed", "view", string(snap.Kind), "error", err)
			}
		}
	}
}
