// internal/common/http/client.go
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"icp-pipeline/internal/common/metrics"
)

// DefaultMaxInFlight bounds concurrent requests to the backend.
const DefaultMaxInFlight = 2

// Client is an http.Client with a bounded number of unresolved requests.
// A slot is taken before dispatch and given back when the response body is
// closed, or immediately when the round trip fails.
type Client struct {
	httpClient *http.Client
	slots      chan struct{}
	inFlight   int64
	name       string
}

// Option customizes a Client.
type Option func(*Client)

// WithMaxInFlight sets the concurrency cap. Values below 1 are ignored.
func WithMaxInFlight(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.slots = make(chan struct{}, n)
		}
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithName labels the in-flight gauge.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		slots:      make(chan struct{}, DefaultMaxInFlight),
		name:       "backend",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cap returns the configured concurrency limit.
func (c *Client) Cap() int {
	return cap(c.slots)
}

// InFlight returns the number of requests currently holding a slot.
func (c *Client) InFlight() int {
	return int(atomic.LoadInt64(&c.inFlight))
}

// Do waits for a free slot, then sends req. Callers must close the response
// body to release the slot.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do bound to ctx. If ctx ends while waiting for a slot the
// request is never dispatched and ctx.Err() is returned.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.acquired()

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		c.release()
		return nil, err
	}

	resp.Body = &slotBody{ReadCloser: resp.Body, release: c.release}
	return resp, nil
}

func (c *Client) acquired() {
	n := atomic.AddInt64(&c.inFlight, 1)
	metrics.BackendRequestsInFlight.WithLabelValues(c.name).Set(float64(n))
}

func (c *Client) release() {
	n := atomic.AddInt64(&c.inFlight, -1)
	metrics.BackendRequestsInFlight.WithLabelValues(c.name).Set(float64(n))
	<-c.slots
}

// slotBody returns its slot exactly once, on Close.
type slotBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *slotBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
