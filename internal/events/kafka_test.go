package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func completedOrder(t *testing.T) models.PaymentOrder {
	t.Helper()

	snapshot, err := models.NewCartSnapshot([]models.CartLine{
		{ProductID: "p-1", Name: "Ibuprofeno", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
	})
	require.NoError(t, err)

	providerID := "5O190127TN364715T"
	payerID := "PAYER42"
	return models.PaymentOrder{
		ID:              7,
		LocalID:         "local-7",
		UserID:          uuid.New(),
		Total:           decimal.RequireFromString("9"),
		Items:           snapshot,
		Status:          models.PaymentStatusCompleted,
		PaymentMethod:   models.PaymentMethodPayPal,
		ProviderOrderID: &providerID,
		ProviderPayerID: &payerID,
	}
}

func TestKafkaSyncPublisher_PublishOrderSynced(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaSyncPublisher(zap.NewNop(), writer, EventOrderSynced)
	order := completedOrder(t)

	require.NoError(t, pub.PublishOrderSynced(context.Background(), order))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "local-7", string(msg.Key))

	var event OrderSyncedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventOrderSynced, event.EventType)
	assert.Equal(t, uint(7), event.OrderID)
	assert.Equal(t, "9.00", event.Total)
	assert.Equal(t, "5O190127TN364715T", event.ProviderOrderID)
	assert.Equal(t, "PAYER42", event.ProviderPayerID)
	assert.Equal(t, order.UserID.String(), event.UserID)
	require.Len(t, event.Items, 1)
	assert.Equal(t, "Ibuprofeno", event.Items[0].Name)
	assert.NotEmpty(t, event.EventID)
}

func TestKafkaSyncPublisher_WriteFailure(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	pub := newKafkaSyncPublisher(zap.NewNop(), writer, EventOrderSynced)

	err := pub.PublishOrderSynced(context.Background(), completedOrder(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaSyncPublisher_Close(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaSyncPublisher(zap.NewNop(), writer, EventOrderSynced)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestNopPublisher(t *testing.T) {
	var pub NopPublisher
	assert.NoError(t, pub.PublishOrderSynced(context.Background(), models.PaymentOrder{}))
	assert.NoError(t, pub.Close())
}
