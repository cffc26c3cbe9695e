package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// auditQueues are the event queues the audit consumer drains.
var auditQueues = []string{
	EventReservationCreated,
	EventReservationDecided,
	EventKeyPickedUp,
	EventKeyReturned,
	EventNoShow,
}

// StartAuditConsumer connects to RabbitMQ and appends every custody and
// lifecycle event to logs/audit.log, one line per message. It runs a
// reconnect loop with backoff and keeps going across broker restarts;
// malformed messages are rejected without requeue so a poison message
// cannot wedge the queue.
func StartAuditConsumer(url string, log zerolog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("audit consumer: broker dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, log); err != nil {
			log.Warn().Err(err).Msg("audit consumer: consume loop ended, reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, log zerolog.Logger) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit consumer: set QoS failed")
	}

	// done lets the per-queue forwarders exit once this loop returns;
	// without it a forwarder mid-send on deliveries would block forever
	// and leak one goroutine per queue per reconnect.
	deliveries := make(chan amqp.Delivery)
	done := make(chan struct{})
	defer close(done)
	for _, name := range auditQueues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go forward(msgs, deliveries, name, done)
	}

	closed := make(chan *amqp.Error, 1)
	conn.NotifyClose(closed)
	for {
		select {
		case d := <-deliveries:
			if err := appendAuditLine(d.RoutingKey, d.Body); err != nil {
				log.Warn().Err(err).Str("event", d.RoutingKey).Msg("audit consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		case <-closed:
			return errors.New("connection closed")
		}
	}
}

// forward relays one queue's deliveries onto the shared channel,
// stamping the queue name so the receiver knows the event type. It
// returns when the source channel closes or done is closed.
func forward(msgs <-chan amqp.Delivery, out chan<- amqp.Delivery, queueName string, done <-chan struct{}) {
	for d := range msgs {
		d.RoutingKey = queueName
		select {
		case out <- d:
		case <-done:
			return
		}
	}
}

func appendAuditLine(eventType string, body []byte) error {
	// Unmarshal into a generic map so each event shape logs uniformly.
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "audit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	entry := map[string]interface{}{
		"event":       eventType,
		"received_at": time.Now().UTC().Format(time.RFC3339),
		"payload":     fields,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
