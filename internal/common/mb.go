package common

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Exchange string

type Queue string

type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error)
}

// MessageSubscriber receives every message of a fanout exchange on a private queue.
type MessageSubscriber interface {
	Subscribe(exchange Exchange) (<-chan amqp.Delivery, error)
}

const (
	UserExchange       Exchange   = "user_exchange"
	UserCreatedQueue   Queue      = "user_created_queue"
	UserCreatedKey     BindingKey = "user.created"
	PasswordResetQueue Queue      = "password_reset_queue"
	PasswordResetKey   BindingKey = "user.password_reset"

	BookingExchange     Exchange   = "booking_exchange"
	BookingCreatedQueue Queue      = "booking_created_queue"
	BookingCreatedKey   BindingKey = "booking.created"

	BlogExchange Exchange   = "blog_exchange"
	BlogEventKey BindingKey = "blog.event"
)

type binding struct {
	exchange Exchange
	queue    Queue
	key      BindingKey
}

var directBindings = []binding{
	{UserExchange, UserCreatedQueue, UserCreatedKey},
	{UserExchange, PasswordResetQueue, PasswordResetKey},
	{BookingExchange, BookingCreatedQueue, BookingCreatedKey},
}

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	return conn, ch, nil
}

// Close closes the connection and channel of the message broker.
func (mb *MessageBroker) Close() error {
	err := mb.ch.Close()
	if err != nil {
		return err
	}

	err = mb.conn.Close()
	if err != nil {
		return err
	}

	return nil
}

// SetupExchanges declares the user and booking direct exchanges with their durable queues,
// and the blog fanout exchange used by the live feed.
func SetupExchanges(mb *MessageBroker) error {
	declared := make(map[Exchange]bool)

	for _, b := range directBindings {
		if !declared[b.exchange] {
			err := mb.ch.ExchangeDeclare(string(b.exchange), "direct", true, false, false, false, nil)
			if err != nil {
				return fmt.Errorf("could not declare exchange %s: %w", b.exchange, err)
			}
			declared[b.exchange] = true
		}

		_, err := mb.ch.QueueDeclare(string(b.queue), true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("could not declare queue %s: %w", b.queue, err)
		}

		err = mb.ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil)
		if err != nil {
			return fmt.Errorf("could not bind queue %s: %w", b.queue, err)
		}
	}

	err := mb.ch.ExchangeDeclare(string(BlogExchange), "fanout", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("could not declare exchange %s: %w", BlogExchange, err)
	}

	return nil
}

func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	msgs, err := mb.ch.Consume(string(queue), string(key), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}

// Subscribe binds a server-named, exclusive, auto-delete queue to the exchange.
// The queue disappears with the connection, so every process sees every message.
func (mb *MessageBroker) Subscribe(exchange Exchange) (<-chan amqp.Delivery, error) {
	q, err := mb.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not declare subscriber queue: %w", err)
	}

	err = mb.ch.QueueBind(q.Name, "", string(exchange), false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not bind subscriber queue: %w", err)
	}

	msgs, err := mb.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}
