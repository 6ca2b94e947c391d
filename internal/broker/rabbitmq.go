package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/stream"
)

const (
	// ExchangeTopic receives every relayed chat event, routed user.<id>.
	ExchangeTopic = "chat.topic"
	// ExchangePush receives events for offline receivers.
	ExchangePush = "chat.push"

	pushQueue = "push_notifications"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	// StreamEnv is initialized lazily, only for the stream relay mode.
	StreamEnv *stream.Environment
}

func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, decl := range []struct {
		name, kind string
	}{
		{ExchangeTopic, "topic"},
		{ExchangePush, "fanout"},
	} {
		if err := ch.ExchangeDeclare(decl.name, decl.kind, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", decl.name, err)
		}
	}

	return &RabbitMQClient{conn: conn, channel: ch}, nil
}

// InitStream prepares the stream environment and declares the named stream.
func (c *RabbitMQClient) InitStream(uri, name string) error {
	env, err := stream.NewEnvironment(stream.NewEnvironmentOptions().SetUri(uri))
	if err != nil {
		return fmt.Errorf("failed to create stream environment: %w", err)
	}
	if err := env.DeclareStream(name,
		stream.NewStreamOptions().SetMaxLengthBytes(stream.ByteCapacity{}.GB(1))); err != nil {
		return fmt.Errorf("failed to declare stream %s: %w", name, err)
	}
	c.StreamEnv = env
	return nil
}

func (c *RabbitMQClient) PublishToExchange(ctx context.Context, exchange, routingKey string, body interface{}) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	return c.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        bytes,
		},
	)
}

// ConsumePushQueue binds a durable queue to the push exchange and consumes it.
func (c *RabbitMQClient) ConsumePushQueue() (<-chan amqp.Delivery, error) {
	q, err := c.channel.QueueDeclare(pushQueue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare push queue: %w", err)
	}
	if err := c.channel.QueueBind(q.Name, "#", ExchangePush, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind push queue: %w", err)
	}
	return c.channel.Consume(q.Name, "", false, false, false, false, nil)
}

func (c *RabbitMQClient) Close() {
	if c.StreamEnv != nil {
		c.StreamEnv.Close()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
