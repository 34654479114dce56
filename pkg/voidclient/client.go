package voidclient

import (
	"context"
	"time"
)

// Client is voidclient's entry point: a connection pool plus default
// timeouts, allocating a fresh Request/Response per call rather than
// pooling them.
type Client struct {
	pool           *ConnectionPool
	requestTimeout time.Duration
}

// NewClient builds a Client with DefaultPoolConfig and a 30s default
// per-request timeout.
func NewClient() *Client {
	return &Client{
		pool:           NewConnectionPool(DefaultPoolConfig()),
		requestTimeout: 30 * time.Second,
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body []byte) (*Response, error) {
	req, err := NewRequest("POST", rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// Do executes req against a pooled connection, returning it to the pool
// (or closing it, if the response or the peer declined keep-alive) before
// returning.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	key := req.hostKey()
	conn, reader, err := c.pool.Get(ctx, key, "tcp", key)
	if err != nil {
		return nil, err
	}

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	if _, err := conn.Write(req.encode()); err != nil {
		conn.Close()
		c.pool.Put(key, conn, reader, false)
		return nil, err
	}

	resp, keepAlive, err := readResponse(reader)
	if err != nil {
		conn.Close()
		c.pool.Put(key, conn, reader, false)
		return nil, err
	}

	conn.SetDeadline(time.Time{})
	c.pool.Put(key, conn, reader, keepAlive)
	return resp, nil
}

// Close tears down every pooled connection.
func (c *Client) Close() error {
	return c.pool.Close()
}
