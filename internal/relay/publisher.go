package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"quickchat/internal/broker"

	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/amqp"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/stream"
)

// Publisher hands a relayed event to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// AMQPPublisher routes events through a classic exchange.
type AMQPPublisher struct {
	client   *broker.RabbitMQClient
	exchange string
}

func NewAMQPPublisher(client *broker.RabbitMQClient, exchange string) *AMQPPublisher {
	return &AMQPPublisher{client: client, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	return p.client.PublishToExchange(ctx, p.exchange, routingKey, body)
}

// StreamPublisher appends events to a RabbitMQ Stream. Streams have no
// routing; consumers filter on the receiver id already present in the
// payload, so the routing key is dropped here.
type StreamPublisher struct {
	producer *stream.Producer
}

func NewStreamPublisher(client *broker.RabbitMQClient, streamName string) (*StreamPublisher, error) {
	producer, err := client.StreamEnv.NewProducer(streamName, stream.NewProducerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create stream producer: %w", err)
	}
	return &StreamPublisher{producer: producer}, nil
}

func (p *StreamPublisher) Publish(ctx context.Context, _ string, body interface{}) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	if err := p.producer.Send(amqp.NewMessage(bytes)); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

func (p *StreamPublisher) Close() error {
	return p.producer.Close()
}
