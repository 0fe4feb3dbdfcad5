// Package natsclient wraps the NATS connection used for outcome
// notifications and, in kv storage mode, the JetStream key-value buckets
// backing persistence.
package natsclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jvalue/ods-adapter/errors"
)

// Client owns one NATS connection and its JetStream context.
type Client struct {
	url string

	clientName     string
	connectTimeout time.Duration
	maxReconnects  int
	reconnectWait  time.Duration

	conn *nats.Conn
	js   jetstream.JetStream
}

// ClientOption configures a Client before it connects.
type ClientOption func(*Client)

// WithName sets the client name reported to the server.
func WithName(name string) ClientOption {
	return func(c *Client) { c.clientName = name }
}

// WithConnectTimeout bounds the initial connection attempt.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.connectTimeout = d }
}

// WithMaxReconnects sets the reconnect budget (-1 for unlimited).
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) { c.maxReconnects = n }
}

// WithReconnectWait sets the wait between reconnect attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) { c.reconnectWait = d }
}

// New builds an unconnected client for the given server URL.
func New(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:            url,
		clientName:     "ods-adapter",
		connectTimeout: 5 * time.Second,
		maxReconnects:  -1,
		reconnectWait:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server and initializes the JetStream context.
func (c *Client) Connect() error {
	conn, err := nats.Connect(c.url,
		nats.Name(c.clientName),
		nats.Timeout(c.connectTimeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
	)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Connect", "nats dial")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return errors.WrapFatal(err, "Client", "Connect", "jetstream init")
	}

	c.conn = conn
	c.js = js
	return nil
}

// Publish sends one message on a core NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	if c.conn == nil {
		return errors.WrapTransient(errors.ErrStorageUnavailable, "Client", "Publish", "connection check")
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "nats publish")
	}
	return nil
}

// KeyValue creates or binds the named JetStream key-value bucket.
func (c *Client) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	if c.js == nil {
		return nil, errors.WrapTransient(errors.ErrStorageUnavailable, "Client", "KeyValue", "connection check")
	}
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "KeyValue", "bucket setup")
	}
	return kv, nil
}

// Close drains the connection so queued publishes flush before shutdown.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.js = nil
}
