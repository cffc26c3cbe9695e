package queue

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestForwardStampsQueueName(t *testing.T) {
	msgs := make(chan amqp.Delivery, 1)
	out := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Body: []byte(`{"reservation_id":10}`)}
	close(msgs)

	forward(msgs, out, EventKeyPickedUp, make(chan struct{}))

	d := <-out
	assert.Equal(t, EventKeyPickedUp, d.RoutingKey)
}

func TestForwardExitsMidSendWhenDone(t *testing.T) {
	msgs := make(chan amqp.Delivery, 1)
	out := make(chan amqp.Delivery) // nobody ever reads
	done := make(chan struct{})
	msgs <- amqp.Delivery{Body: []byte(`{}`)}

	exited := make(chan struct{})
	go func() {
		forward(msgs, out, EventNoShow, done)
		close(exited)
	}()

	// The forwarder is blocked on the send; closing done must release it.
	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("forwarder still blocked after done closed")
	}
}
