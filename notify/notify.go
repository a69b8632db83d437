package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sig-0/bocrates/storage/types"
)

var errNoTopic = errors.New("no topic specified")

// Notifier publishes ingestion reports
type Notifier interface {
	Notify(ctx context.Context, report *types.IngestionReport) error
}

// Noop is a notifier that publishes nothing
type Noop struct{}

func (Noop) Notify(_ context.Context, _ *types.IngestionReport) error {
	return nil
}

// writer is the subset of the kafka writer used by the notifier
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes ingestion reports as JSON messages, keyed by run ID
type KafkaNotifier struct {
	w      writer
	logger *slog.Logger
	topic  string
}

type Option func(n *KafkaNotifier)

// WithLogger specifies the logger for the notifier
func WithLogger(l *slog.Logger) Option {
	return func(n *KafkaNotifier) {
		n.logger = l
	}
}

// NewKafkaNotifier creates a notifier publishing to the given topic.
// Writes are synchronous, so a failed publish is reported to the caller
func NewKafkaNotifier(brokers []string, topic string, opts ...Option) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, errNoTopic
	}

	n := newKafkaNotifier(
		&kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic,
		opts...,
	)

	n.logger.Info(
		"kafka notifier initialized",
		"topic", topic,
		"brokers", brokers,
	)

	return n, nil
}

func newKafkaNotifier(w writer, topic string, opts ...Option) *KafkaNotifier {
	n := &KafkaNotifier{
		w:      w,
		topic:  topic,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

func (n *KafkaNotifier) Notify(ctx context.Context, report *types.IngestionReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("unable to marshal report: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(report.RunID),
		Value: value,
		Time:  report.FinishedAt,
	}

	if err = n.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("unable to publish report to %s: %w", n.topic, err)
	}

	n.logger.Debug(
		"published ingestion report",
		"run_id", report.RunID,
		"inserted", report.Inserted,
	)

	return nil
}

// Close flushes and closes the underlying writer
func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
