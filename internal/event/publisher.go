package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nurpe/sid-bonds/internal/model"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends guarantee events to a topic exchange, routed as
// "bonds.<event_type>".
type Publisher struct {
	ch       channel
	exchange string
}

func NewPublisher(conn *RabbitMQConnection, exchange string) *Publisher {
	return &Publisher{ch: conn.Channel, exchange: exchange}
}

func RoutingKey(t model.GuaranteeEventType) string {
	return "bonds." + string(t)
}

func (p *Publisher) Publish(ctx context.Context, event model.GuaranteeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal guarantee event: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(event.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish guarantee event: %w", err)
	}
	return nil
}
