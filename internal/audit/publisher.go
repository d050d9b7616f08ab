package audit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const auditQueueName = "layout.audit"

// QueuePublisher pushes audit entries onto a durable broker queue so
// downstream consumers (reporting, notifications) can react without querying
// the primary database. Publishing is best effort: a broker outage must never
// fail an activation.
type QueuePublisher struct {
	url    string
	logger *zap.Logger
}

// NewQueuePublisher constructs a publisher for the given AMQP URL.
func NewQueuePublisher(url string, logger *zap.Logger) *QueuePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuePublisher{url: url, logger: logger}
}

// Record publishes the entry as a persistent JSON message.
func (p *QueuePublisher) Record(ctx context.Context, entry Entry) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("audit publisher dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("audit publisher channel open failed", zap.Error(err))
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		p.logger.Warn("audit queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", auditQueueName, false, false, publishing); err != nil {
		p.logger.Warn("audit publish failed", zap.Error(err))
		return err
	}
	return nil
}
