package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/models"
)

// EventOrderSynced is the event type published for every order marked as synced.
const EventOrderSynced = "order.payment.synced"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderSyncedEvent is the payload of EventOrderSynced.
type OrderSyncedEvent struct {
	EventID         string            `json:"event_id"`
	EventType       string            `json:"event_type"`
	EventVersion    int               `json:"event_version"`
	OccurredAt      string            `json:"occurred_at"`
	OrderID         uint              `json:"order_id"`
	LocalID         string            `json:"local_id"`
	UserID          string            `json:"user_id"`
	Total           string            `json:"total"`
	PaymentMethod   string            `json:"payment_method"`
	ProviderOrderID string            `json:"provider_order_id,omitempty"`
	ProviderPayerID string            `json:"provider_payer_id,omitempty"`
	Items           []models.CartLine `json:"items"`
}

// KafkaSyncPublisher writes order sync acknowledgements to a Kafka topic.
type KafkaSyncPublisher struct {
	logger *zap.Logger
	writer messageWriter
	topic  string
}

// NewKafkaSyncPublisher creates a publisher writing to topic on brokers.
func NewKafkaSyncPublisher(logger *zap.Logger, brokers []string, topic string) *KafkaSyncPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaSyncPublisher(logger, writer, topic)
}

func newKafkaSyncPublisher(logger *zap.Logger, writer messageWriter, topic string) *KafkaSyncPublisher {
	return &KafkaSyncPublisher{
		logger: logger.Named("kafka"),
		writer: writer,
		topic:  topic,
	}
}

// Close flushes and closes the writer.
func (p *KafkaSyncPublisher) Close() error {
	return p.writer.Close()
}

// PublishOrderSynced publishes one acknowledgement keyed by the order's local id.
func (p *KafkaSyncPublisher) PublishOrderSynced(ctx context.Context, order models.PaymentOrder) error {
	event := OrderSyncedEvent{
		EventID:         uuid.NewString(),
		EventType:       EventOrderSynced,
		EventVersion:    1,
		OccurredAt:      time.Now().UTC().Format(time.RFC3339),
		OrderID:         order.ID,
		LocalID:         order.LocalID,
		UserID:          order.UserID.String(),
		Total:           order.Total.StringFixed(2),
		PaymentMethod:   order.PaymentMethod,
		ProviderOrderID: deref(order.ProviderOrderID),
		ProviderPayerID: deref(order.ProviderPayerID),
		Items:           order.Lines(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order synced event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.LocalID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish order synced event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("local_id", order.LocalID),
		)
		return fmt.Errorf("publish order synced event: %w", err)
	}

	p.logger.Debug("order synced event published",
		zap.String("topic", p.topic),
		zap.String("local_id", order.LocalID),
	)
	return nil
}

// NopPublisher accepts every event and sends nothing. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderSynced(context.Context, models.PaymentOrder) error { return nil }

func (NopPublisher) Close() error { return nil }

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
