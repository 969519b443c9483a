// Package kafka forwards session events to a Kafka topic for downstream
// audit consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cadastre-extract-service/internal/config"
	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

const (
	writeAttempts  = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Writer produces session events to the configured events topic.
type Writer struct {
	writer   messageWriter
	metrics  *observability.Metrics
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaEventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:   w,
		metrics:  metrics,
		logger:   logger,
		attempts: writeAttempts,
		backoff:  initialBackoff,
	}
}

// Forward publishes every forwardable event read from events until the
// channel closes or ctx is cancelled. A failed write is retried with
// exponential backoff; once attempts are exhausted the event is dropped,
// logged and counted, and forwarding continues.
func (w *Writer) Forward(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !forwardable(e.Kind) {
				continue
			}
			w.write(ctx, e)
		}
	}
}

func (w *Writer) write(ctx context.Context, e domain.Event) {
	msg, err := serializeToMessage(e)
	if err != nil {
		w.metrics.EventsForwarded.WithLabelValues("error").Inc()
		w.logger.Warn("serialize event failed", "kind", e.Kind, "session", e.Session, "error", err)
		return
	}
	if err := w.writeWithRetry(ctx, msg); err != nil {
		w.metrics.EventsForwarded.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			w.logger.Warn("forward event failed", "kind", e.Kind, "session", e.Session, "error", err)
		}
		return
	}
	w.metrics.EventsForwarded.WithLabelValues("success").Inc()
}

func (w *Writer) writeWithRetry(ctx context.Context, msg kafkago.Message) error {
	backoff := w.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.writer.WriteMessages(ctx, msg); err == nil {
			return nil
		}
		if attempt >= w.attempts || ctx.Err() != nil {
			return err
		}
		w.logger.Debug("event write failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return err
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// forwardable selects the outcome events; progress and search chatter stays
// in-process.
func forwardable(k domain.EventKind) bool {
	switch k {
	case domain.EventRecordResolved, domain.EventRecordCleared,
		domain.EventExportCompleted, domain.EventExportFailed:
		return true
	default:
		return false
	}
}

// serializeToMessage marshals an Event into a Kafka message keyed by session
// so a session's events stay ordered within one partition.
func serializeToMessage(e domain.Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize session event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.Session),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(e.Kind)},
			{Key: "emitted_at", Value: []byte(e.At.Format(time.RFC3339))},
		},
	}, nil
}
