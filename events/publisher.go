package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// CashMovement is the event emitted after a cash transaction commits. Consumers
// (dashboard projections, notification jobs) treat it as informational; the cash
// register table stays the source of truth.
type CashMovement struct {
	TransactionId     int             `json:"transaction_id"`
	BusinessId        string          `json:"business_id"`
	TransactionNumber string          `json:"transaction_number"`
	TransactionDate   time.Time       `json:"transaction_date"`
	Amount            decimal.Decimal `json:"amount"`
	Direction         string          `json:"direction"`
	SourceModule      string          `json:"source_module"`
	SourceId          int             `json:"source_id"`
	PaymentMode       string          `json:"payment_mode"`
	CreatedBy         int             `json:"created_by"`
	CorrelationId     string          `json:"correlation_id,omitempty"`
}

const cashMovementTopic = "cash_movement"

var (
	writerOnce sync.Once
	writer     *kafka.Writer
)

func cashWriter() *kafka.Writer {
	writerOnce.Do(func() {
		brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
		if brokers == "" {
			return
		}
		writer = &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        cashMovementTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	})
	return writer
}

// PublishCashMovement is best-effort and must only be called after the DB
// transaction has committed. A nil return with no brokers configured is normal
// for dev and test environments.
func PublishCashMovement(ctx context.Context, event CashMovement) error {
	w := cashWriter()
	if w == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BusinessId),
		Value: data,
	})
}
