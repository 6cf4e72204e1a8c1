package common

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBroker(t *testing.T) {
	mb := TestBroker(t)

	t.Run("direct exchange delivers to bound queue", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		msgs, err := mb.Consume(BookingCreatedKey, BookingExchange, BookingCreatedQueue)
		require.NoError(t, err)

		err = mb.Publish(ctx, []byte(`{"name":"Jane Doe"}`), BookingCreatedKey, BookingExchange)
		require.NoError(t, err)

		select {
		case msg := <-msgs:
			assert.JSONEq(t, `{"name":"Jane Doe"}`, string(msg.Body))
			assert.NoError(t, msg.Ack(false))
		case <-ctx.Done():
			t.Fatal("timed out waiting for message")
		}
	})

	t.Run("fanout reaches every subscriber", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		first, err := mb.Subscribe(BlogExchange)
		require.NoError(t, err)
		second, err := mb.Subscribe(BlogExchange)
		require.NoError(t, err)

		err = mb.Publish(ctx, []byte(`{"type":"post.created"}`), BlogEventKey, BlogExchange)
		require.NoError(t, err)

		for _, ch := range []<-chan amqp.Delivery{first, second} {
			select {
			case msg := <-ch:
				assert.JSONEq(t, `{"type":"post.created"}`, string(msg.Body))
			case <-ctx.Done():
				t.Fatal("timed out waiting for message")
			}
		}
	})
}
