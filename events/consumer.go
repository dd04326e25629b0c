package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange   = "restaurants_topic"
	BindingKey = "restaurant.*"
)

var (
	ErrMalformed = errors.New("malformed restaurant event")
	ErrRequeue   = errors.New("transient failure, requeue")
)

// RestaurantUpdated is published by the marketplace backend whenever a restaurant,
// its schedule or its listings change.
type RestaurantUpdated struct {
	RestaurantID int64  `json:"restaurant_id"`
	Event        string `json:"event"`
}

// Invalidator drops cached restaurant snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	cache Invalidator
	log   *slog.Logger
}

// Dial opens a channel and declares the exchange, queue and binding.
func Dial(url, queue string, cache Invalidator, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	c := &Consumer{conn: conn, ch: ch, queue: queue, cache: cache, log: log}
	if err := c.declare(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) declare() error {
	if err := c.ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", Exchange, err)
	}
	if _, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", c.queue, err)
	}
	if err := c.ch.QueueBind(c.queue, BindingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind %s: %w", c.queue, err)
	}
	return c.ch.Qos(10, 0, false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run consumes until ctx is cancelled or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	const tag = "storefront-cache"
	msgs, err := c.ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("consuming restaurant updates", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			_ = c.ch.Cancel(tag, false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			err := Handle(ctx, c.cache, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrMalformed):
				c.log.Warn("dropping restaurant event", "err", err)
				_ = d.Nack(false, false)
			default:
				c.log.Error("restaurant event failed", "err", err)
				_ = d.Nack(false, true)
			}
		}
	}
}

// Handle decodes one event and invalidates the snapshot cache.
func Handle(ctx context.Context, cache Invalidator, body []byte) error {
	var ev RestaurantUpdated
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.RestaurantID <= 0 {
		return fmt.Errorf("%w: missing restaurant_id", ErrMalformed)
	}
	if err := cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRequeue, err)
	}
	return nil
}
