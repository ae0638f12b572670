// Package mock provides a scripted inference client for testing.
package mock

import (
	"context"
	"sync"

	"github.com/taskpilot/taskpilot/provider"
)

const defaultResponse = `[]`

// Client implements provider.Client with scripted responses. Responses are
// returned in order, cycling; queued errors take precedence over responses.
type Client struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	idx       int

	// Requests records every request received, in order.
	Requests []provider.Request
}

// New creates a Client that cycles through the given responses.
func New(responses ...string) *Client {
	return &Client{responses: responses}
}

// NewError creates a Client that fails every call with err.
func NewError(err error) *Client {
	return &Client{errs: []error{err}}
}

// Name returns the client identifier.
func (c *Client) Name() string { return "mock" }

// Complete returns the next scripted response or error.
func (c *Client) Complete(_ context.Context, req provider.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Requests = append(c.Requests, req)

	if len(c.errs) > 0 {
		return "", c.errs[c.idx%len(c.errs)]
	}
	if len(c.responses) == 0 {
		return defaultResponse, nil
	}
	resp := c.responses[c.idx%len(c.responses)]
	c.idx++
	return resp, nil
}
