package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher pushes domain events to RabbitMQ. Each event type maps to
// a durable queue of the same name on the default exchange. Publish
// failures are returned so callers can log and move on; a broker
// outage must never fail the originating request.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher builds a publisher for the given AMQP URL.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// PublishJSON marshals payload and publishes it persistently to the
// queue named after eventType. A connection is dialed per publish; the
// event volume here is a handful per reservation, not a firehose.
func (p *Publisher) PublishJSON(eventType string, payload interface{}) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(eventType, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx,
		"",        // default exchange
		eventType, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
