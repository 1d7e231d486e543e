package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// NotificationPublisher fans stored notifications out to other consumers
// (mail, push). Delivery is best effort.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event *models.NotificationCreatedEvent) error
	Close() error
}

type RabbitMQOptions struct {
	URL              string
	Exchange         string
	RoutingKeyPrefix string
	QueueName        string
	PublishTimeout   time.Duration
}

type rabbitMQClient struct {
	mu             sync.Mutex
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	exchange       string
	prefix         string
	publishTimeout time.Duration
	logger         zerolog.Logger
}

func NewRabbitMQClient(opts RabbitMQOptions, logger zerolog.Logger) (NotificationPublisher, error) {
	conn, err := amqp091.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		opts.Exchange, // name
		"topic",       // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		opts.QueueName, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	bindingKey := opts.RoutingKeyPrefix + ".#"
	err = channel.QueueBind(
		queue.Name,    // queue name
		bindingKey,    // routing key
		opts.Exchange, // exchange
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger.Info().
		Str("exchange", opts.Exchange).
		Str("queue", queue.Name).
		Str("binding_key", bindingKey).
		Msg("Connected to RabbitMQ")

	return &rabbitMQClient{
		conn:           conn,
		channel:        channel,
		exchange:       opts.Exchange,
		prefix:         opts.RoutingKeyPrefix,
		publishTimeout: timeout,
		logger:         logger,
	}, nil
}

// RoutingKey returns "<prefix>.<type>", e.g. notification.application_approved.
func RoutingKey(prefix string, t models.NotificationType) string {
	return prefix + "." + string(t)
}

func (c *rabbitMQClient) PublishNotification(ctx context.Context, event *models.NotificationCreatedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	c.mu.Lock()
	err = c.channel.PublishWithContext(
		publishCtx,
		c.exchange,                       // exchange
		RoutingKey(c.prefix, event.Type), // routing key
		false,                            // mandatory
		false,                            // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.NotificationID,
			Timestamp:    time.Now(),
		},
	)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug().
		Str("notification_id", event.NotificationID).
		Str("type", string(event.Type)).
		Msg("Notification event published")

	return nil
}

func (c *rabbitMQClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when the broker is disabled.
func NewNoopPublisher() NotificationPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishNotification(context.Context, *models.NotificationCreatedEvent) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
