// Package consumer runs the broker delivery loop shared by both services:
// decode a JSON payload, hand it to a handler, and ack/nack based on the
// outcome. Generalizes the teacher repo's internal/queue.Consumer (which
// only ever unmarshaled models.Order) into a routing-key-keyed dispatch
// table so one loop serves every event type a service subscribes to.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stepangreenberg/order-processor/internal/broker"
	"github.com/stepangreenberg/order-processor/internal/metrics"
)

// Prefetch is the AMQP QoS prefetch count spec.md §6 mandates.
const Prefetch = 10

// Handler processes one decoded message body for a given routing key. A
// returned error causes the delivery to be nacked and requeued.
type Handler func(ctx context.Context, body []byte) error

// Loop dispatches deliveries from a single queue to per-routing-key
// handlers.
type Loop struct {
	conn     *broker.Conn
	queue    string
	handlers map[string]Handler
	log      *slog.Logger
}

// New constructs a Loop bound to queueName, already declared and bound by
// the caller via broker.Conn.DeclareServiceQueue.
func New(conn *broker.Conn, queueName string, log *slog.Logger) *Loop {
	return &Loop{conn: conn, queue: queueName, handlers: make(map[string]Handler), log: log.With("component", "consumer", "queue", queueName)}
}

// On registers the handler invoked for deliveries whose routing key
// equals routingKey.
func (l *Loop) On(routingKey string, h Handler) {
	l.handlers[routingKey] = h
}

// Run blocks, processing deliveries until ctx is cancelled or the
// delivery channel closes.
func (l *Loop) Run(ctx context.Context) error {
	deliveries, err := l.conn.Consume(l.queue, Prefetch)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			l.handle(ctx, d)
		}
	}
}

func (l *Loop) handle(ctx context.Context, d amqp.Delivery) {
	handler, ok := l.handlers[d.RoutingKey]
	if !ok {
		l.log.Warn("no handler registered for routing key, discarding", "routing_key", d.RoutingKey)
		metrics.ConsumerEventsTotal.WithLabelValues(d.RoutingKey, "unroutable").Inc()
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, d.Body); err != nil {
		l.log.Error("handler failed, requeueing", "routing_key", d.RoutingKey, "error", err)
		metrics.ConsumerEventsTotal.WithLabelValues(d.RoutingKey, "error").Inc()
		_ = d.Nack(false, true)
		return
	}

	metrics.ConsumerEventsTotal.WithLabelValues(d.RoutingKey, "applied").Inc()
	_ = d.Ack(false)
}

// DecodeJSON is a small helper handlers use to turn a delivery body into a
// concrete struct before calling a use case.
func DecodeJSON[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}
