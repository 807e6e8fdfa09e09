package notify

import (
	"context"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AdminRoutingKey is the routing key admin notifications are published
// with.
const AdminRoutingKey = "notification.admin"

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitPublisher publishes messages to a topic exchange.
type RabbitPublisher struct {
	ch       Channel
	exchange string
}

// NewRabbitPublisher creates a RabbitPublisher.
func NewRabbitPublisher(ch Channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

// Publish implements Publisher.
func (p *RabbitPublisher) Publish(ctx context.Context, m Message) error {
	err := p.ch.PublishWithContext(ctx,
		p.exchange,
		AdminRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    m.SentAt,
			Body:         m.Bytes(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "rabbitmq publish")
	}
	return nil
}

// DialRabbit connects to url and declares a durable topic exchange.
func DialRabbit(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "declare exchange")
	}
	return conn, ch, nil
}
