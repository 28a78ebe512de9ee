package rabbitmq

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"marketplace-system/internal/config"
)

const (
	// ParentOrdersExchange carries the parent-order change feed. Fanout:
	// every courier session binds its own queue and sees every event.
	ParentOrdersExchange = "parent_orders.events"
	// NotificationsExchange fans out courier-push signals.
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications.q"

	dlxExchange = "dlx"
	dlqQueue    = "dlq"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation // publisher confirms
	mu   sync.Mutex               // serializes Publish while waiting for acks
}

func (c *Client) Channel() *amqp.Channel { return c.ch }

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	url := fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

// Ping is a light connection health check.
func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopology declares the exchanges and durable queues (idempotent).
func (c *Client) DeclareTopology() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	if err := c.ch.ExchangeDeclare(ParentOrdersExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(NotificationsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": dlqQueue,
	}); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(dlqQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil); err != nil {
		return err
	}
	return nil
}

// Publish publishes a message and waits for the broker ack/nack.
// Concurrent callers are serialized by the mutex.
func (c *Client) Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishJSON marshals v and publishes it with Publish.
func (c *Client) PublishJSON(ctx context.Context, exchange, key string, v any, headers amqp.Table) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.Publish(ctx, exchange, key, body, headers)
}

// SessionQueue declares an exclusive auto-delete queue bound to exchange
// on its own channel; one per live subscription session. The queue and
// its binding disappear with the channel.
func (c *Client) SessionQueue(exchange string) (*amqp.Channel, string, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, "", err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, "", err
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", err
	}
	return ch, q.Name, nil
}
