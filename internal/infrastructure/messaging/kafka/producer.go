// Package kafka publishes annotation pipeline events.  Publishing is
// fire-and-forget: a broker failure is logged and counted but never fails
// the inference request that triggered it.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// ErrProducerClosed is returned when publishing after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ProducerMetrics holds publish counters.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
}

// Producer publishes annotation events to Kafka.  It implements
// annotation.EventPublisher.
type Producer struct {
	writer  WriterInterface
	topic   string
	logger  logging.Logger
	closed  atomic.Bool
	metrics *ProducerMetrics
	prom    *prometheus.AppMetrics
}

// WithAppMetrics enables publish counting on the shared metric vectors, in
// addition to the producer's own snapshot counters.
func (p *Producer) WithAppMetrics(m *prometheus.AppMetrics) *Producer {
	p.prom = m
	return p
}

// NewProducer builds a producer from the application Kafka config.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = TopicAnnotationsCreated
	}
	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var acks kafkago.RequiredAcks
	switch cfg.RequiredAcks {
	case 0:
		acks = kafkago.RequireNone
	case -1:
		acks = kafkago.RequireAll
	default:
		acks = kafkago.RequireOne
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  retries + 1,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: acks,
	}

	return &Producer{
		writer:  writer,
		topic:   topic,
		logger:  logger,
		metrics: &ProducerMetrics{},
	}, nil
}

// NewProducerWithWriter wires a custom writer, used by tests.
func NewProducerWithWriter(writer WriterInterface, topic string, logger logging.Logger) *Producer {
	if topic == "" {
		topic = TopicAnnotationsCreated
	}
	return &Producer{
		writer:  writer,
		topic:   topic,
		logger:  logger,
		metrics: &ProducerMetrics{},
	}
}

// PublishAnnotationsCreated emits the event to the annotations topic.  The
// document ID keys the message so one document's events stay ordered on a
// single partition.  Broker errors are logged and swallowed.
func (p *Producer) PublishAnnotationsCreated(ctx context.Context, event *annotation.AnnotationsCreatedEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if event == nil {
		return nil
	}

	env, err := NewEventEnvelope(TopicAnnotationsCreated, event)
	if err != nil {
		return err
	}
	msg, err := env.toKafkaMessage(p.topic, []byte(event.DocumentID))
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.MessagesFailed.Add(1)
		prometheus.RecordEventPublish(p.prom, p.topic, err)
		p.logger.Warn("failed to publish annotations.created event",
			logging.String("document_id", event.DocumentID),
			logging.Int("count", event.Count),
			logging.Err(err))
		return nil
	}

	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(msg.Value)))
	prometheus.RecordEventPublish(p.prom, p.topic, nil)
	p.logger.Debug("annotations.created published",
		logging.String("document_id", event.DocumentID),
		logging.Int("count", event.Count))
	return nil
}

// Metrics returns a snapshot of the publish counters.
func (p *Producer) Metrics() (sent, failed, bytes int64) {
	return p.metrics.MessagesSent.Load(), p.metrics.MessagesFailed.Load(), p.metrics.BytesSent.Load()
}

// Close closes the underlying writer.  Safe to call twice.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed",
		logging.Int64("sent", p.metrics.MessagesSent.Load()),
		logging.Int64("failed", p.metrics.MessagesFailed.Load()))
	return err
}

// NopPublisher satisfies annotation.EventPublisher when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishAnnotationsCreated(context.Context, *annotation.AnnotationsCreatedEvent) error {
	return nil
}
