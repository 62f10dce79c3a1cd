package client

import (
	"log/slog"
	"net/http"

	"github.com/cboiteux2765/GPUTileMathService/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (custom timeouts,
// transports, proxies).
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollPolicy sets the delay policy WaitForTerminal uses between
// status checks. Defaults to a constant 200ms.
func WithPollPolicy(p backoff.Policy) Option {
	return func(c *Client) {
		if p != nil {
			c.poll = p
		}
	}
}
