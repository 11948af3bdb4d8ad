package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"good-food/internal/common/retry"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string // default "/"
	UseTLS   bool
}

func (cfg Config) URL() string {
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	u := fmt.Sprintf("%s://%s:%s@%s:%d", scheme, url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port)
	// No path selects the default vhost "/".
	if cfg.VHost != "" && cfg.VHost != "/" {
		u += "/" + url.PathEscape(cfg.VHost)
	}
	return u
}

// Client owns one connection and one confirm-mode publishing channel.
// Consumers open their own channels with OpenChannel.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // one in-flight publish per confirm
}

func (c *Client) Channel() *amqp.Channel { return c.ch }

func (c *Client) OpenChannel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

func (c *Client) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func Dial(cfg Config) (*Client, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(cfg.URL(), &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(cfg.URL())
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

// DialWithRetry keeps dialing until the broker answers, attempts run out or
// ctx is done. Brokers started by compose usually come up after the service.
func DialWithRetry(ctx context.Context, cfg Config, attempts int, delay time.Duration) (*Client, error) {
	if attempts <= 0 {
		attempts = 10
	}
	var c *Client
	err := retry.Connect(ctx, attempts, delay, func() error {
		var err error
		c, err = Dial(cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq unreachable: %w", err)
	}
	return c, nil
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopic declares a durable topic exchange.
func (c *Client) DeclareTopic(exchange string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

// Publish sends one message and waits for the broker's ack or nack.
func (c *Client) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := c.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
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
