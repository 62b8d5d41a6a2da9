package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

const exchangeTopic = "topic"

// Publisher is the subset of *amqp.Channel used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes events to a topic exchange with routing key
// "<prefix>.<EventName>".
type AMQPSink struct {
	publisher Publisher
	exchange  string
	prefix    string
	closeFn   func() error
}

// NewAMQPSink publishes through an existing channel.
func NewAMQPSink(publisher Publisher, exchange, prefix string) *AMQPSink {
	return &AMQPSink{publisher: publisher, exchange: exchange, prefix: prefix}
}

// DialAMQPSink connects to the broker, retrying with exponential backoff, and
// declares a durable topic exchange.
func DialAMQPSink(ctx context.Context, url, exchange, prefix string, logger *slog.Logger) (*AMQPSink, error) {
	var conn *amqp.Connection
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 6), ctx)
	err := backoff.RetryNotify(func() error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		return dialErr
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("amqp dial failed, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, exchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	sink := NewAMQPSink(ch, exchange, prefix)
	sink.closeFn = func() error {
		if err := ch.Close(); err != nil {
			conn.Close()
			return err
		}
		return conn.Close()
	}
	return sink, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

// RoutingKey returns the routing key used for events named name.
func (s *AMQPSink) RoutingKey(name domain.EventName) string {
	if s.prefix == "" {
		return string(name)
	}
	return s.prefix + "." + string(name)
}

func (s *AMQPSink) Handle(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}
	return s.publisher.PublishWithContext(ctx, s.exchange, s.RoutingKey(ev.Name), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatUint(ev.Seq, 10),
		Timestamp:    ev.Timestamp,
		Type:         string(ev.Name),
		Body:         body,
	})
}

// Close releases the broker connection when the sink owns one.
func (s *AMQPSink) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
