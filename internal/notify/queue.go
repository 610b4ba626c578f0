package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// amqpChannel is the part of *amqp.Channel the queue uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Queue publishes to and consumes from durable RabbitMQ queues.
type Queue struct {
	conn    *amqp.Connection
	channel amqpChannel
	logger  *zap.Logger
}

// NewQueue connects to RabbitMQ and opens a channel.
func NewQueue(url string, logger *zap.Logger) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}
	logger.Info("connected to RabbitMQ")
	return &Queue{conn: conn, channel: ch, logger: logger}, nil
}

func (q *Queue) declare(name string) error {
	_, err := q.channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message to the queue.
func (q *Queue) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.declare(queueName); err != nil {
		return err
	}
	err := q.channel.Publish(
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Consume delivers messages of the queue to handler until ctx is cancelled or the channel
// closes. A message is acked when handler succeeds and requeued once when it fails.
func (q *Queue) Consume(ctx context.Context, queueName string, handler func(context.Context, []byte) error) error {
	if err := q.declare(queueName); err != nil {
		return err
	}
	if err := q.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch on queue %s: %w", queueName, err)
	}
	msgs, err := q.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer for queue %s: %w", queueName, err)
	}

	q.logger.Info("waiting for messages", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			if err := handler(ctx, d.Body); err != nil {
				q.logger.Warn("message handling failed",
					zap.String("queue", queueName),
					zap.Bool("redelivered", d.Redelivered),
					zap.Error(err))
				d.Nack(false, !d.Redelivered)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close closes the channel and the connection.
func (q *Queue) Close() error {
	var errs []error
	if q.channel != nil {
		if err := q.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing RabbitMQ channel: %w", err))
		}
	}
	if q.conn != nil {
		if err := q.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing RabbitMQ connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
