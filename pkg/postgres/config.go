package postgres

import "time"

// ClientConfig holds Postgres pool configuration.
type ClientConfig struct {
	DSN            string
	MaxConns       int
	ConnectTimeout time.Duration
}

// ClientOption configures the client.
type ClientOption func(*ClientConfig)

// WithDSN sets the connection string.
func WithDSN(dsn string) ClientOption {
	return func(c *ClientConfig) {
		c.DSN = dsn
	}
}

// WithMaxConns sets the pool size.
func WithMaxConns(n int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxConns = n
	}
}

// WithConnectTimeout sets the initial ping timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnectTimeout = d
	}
}
