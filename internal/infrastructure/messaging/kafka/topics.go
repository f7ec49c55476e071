package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// Topics emitted by the annotation pipeline.
const (
	TopicAnnotationsCreated  = "annotations.created"
	TopicAnnotationConfirmed = "annotations.confirmed"
	TopicDeadLetterDefault   = "dead_letter.default"
)

const eventSource = "note-clarity"

// EventEnvelope standardizes event messages so consumers can route on
// event_type without decoding the payload.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope wraps a payload in the standard envelope.
func NewEventEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        eventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, target)
}

func (e *EventEnvelope) toKafkaMessage(topic string, key []byte) (kafkago.Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := []kafkago.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source_service", Value: []byte(e.Source)},
		{Key: "schema_version", Value: []byte(e.SchemaVersion)},
	}
	if e.TraceID != "" {
		headers = append(headers, kafkago.Header{Key: "trace_id", Value: []byte(e.TraceID)})
	}
	return kafkago.Message{
		Topic:   topic,
		Key:     key,
		Value:   val,
		Headers: headers,
		Time:    e.Timestamp,
	}, nil
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafkago.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafkago.Partition, error)
	Close() error
}

// TopicManager ensures the pipeline's topics exist at startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker for topic administration.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafkago.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// EnsureTopic creates the topic if it does not exist.  Existing topics are
// left untouched.
func (m *TopicManager) EnsureTopic(topic string, partitions, replication int) error {
	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}
	if parts, err := m.conn.ReadPartitions(topic); err == nil && len(parts) > 0 {
		return nil
	}
	err := m.conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic")
	}
	m.logger.Info("kafka topic ensured",
		logging.String("topic", topic),
		logging.Int("partitions", partitions))
	return nil
}

// Close releases the admin connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}
