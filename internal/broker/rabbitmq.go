// Package broker wraps the AMQP 0-9-1 topic exchange both services publish
// to and consume from. It generalizes the teacher repo's internal/queue
// package (default-exchange, single queue, single service) into a topic
// exchange with one durable queue per service, bound to the routing keys
// that service cares about.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the single topic exchange both services publish to.
const ExchangeName = "orders"

// Conn owns one AMQP connection and channel, shared by a publisher or
// consumer within a single process.
type Conn struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to RabbitMQ, retrying with exponential backoff — the
// broker is frequently still starting up when a service container does,
// so a bare amqp.Dial would flap the whole process on every restart.
func Dial(ctx context.Context, url string) (*Conn, error) {
	var conn *amqp.Connection

	op := func() error {
		c, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 10 * time.Second})
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("broker: declare exchange: %w", err)
	}

	return &Conn{conn: conn, Channel: ch}, nil
}

// Close releases the channel and connection.
func (c *Conn) Close() {
	c.Channel.Close()
	c.conn.Close()
}

// DeclareServiceQueue declares and binds the durable, per-service queue
// named "<service>.<routingKey>" per spec.md §6, and returns its name.
func (c *Conn) DeclareServiceQueue(service, routingKey string) (string, error) {
	name := fmt.Sprintf("%s.%s", service, routingKey)

	q, err := c.Channel.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("broker: declare queue %s: %w", name, err)
	}

	if err := c.Channel.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return "", fmt.Errorf("broker: bind queue %s to %s: %w", q.Name, routingKey, err)
	}

	return q.Name, nil
}

// Publish sends one persistent, JSON-content-typed message to the topic
// exchange under routingKey. Each call stamps a fresh random MessageId, so
// an outbox row that is published again after a failed attempt carries a
// different MessageId each time.
func (c *Conn) Publish(ctx context.Context, routingKey string, body []byte) error {
	return c.Channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    uuid.New().String(),
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume sets the given prefetch count and returns the raw delivery
// channel for queueName. Callers ack/nack each delivery themselves.
func (c *Conn) Consume(queueName string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.Channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("broker: set qos: %w", err)
	}

	deliveries, err := c.Channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: consume %s: %w", queueName, err)
	}
	return deliveries, nil
}
