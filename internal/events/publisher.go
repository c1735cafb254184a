// Package events publishes message lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

const EventMessageCreated = "message.created"

// MessageCreated is the value written for every persisted message.
type MessageCreated struct {
	Event   string          `json:"event"`
	Message *domain.Message `json:"message"`
	SentAt  time.Time       `json:"sent_at"`
}

type KafkaPublisher struct {
	writer *kafkago.Writer
	log    *zap.Logger
}

// NewKafkaPublisher returns an async writer; delivery errors are logged from
// the completion callback.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				logger.Warn("kafka publish failed", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: w, log: logger}
}

func (p *KafkaPublisher) PublishMessageCreated(ctx context.Context, m *domain.Message) error {
	msg, err := newKafkaMessage(m, time.Now().UTC())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// newKafkaMessage keys by conversation so both directions land on one partition.
func newKafkaMessage(m *domain.Message, now time.Time) (kafkago.Message, error) {
	b, err := json.Marshal(MessageCreated{Event: EventMessageCreated, Message: m, SentAt: now})
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   []byte(ConversationKey(m.SenderID, m.ReceiverID)),
		Value: b,
		Time:  now,
	}, nil
}

// ConversationKey is order independent: ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishMessageCreated(context.Context, *domain.Message) error { return nil }
