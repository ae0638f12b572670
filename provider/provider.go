// Package provider defines the inference client boundary for taskpilot.
// A client is pure transport: it carries a prompt to an external
// text-completion service and returns the raw text, with no knowledge of
// task semantics.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable indicates a transport or service failure. The client
	// never retries; retry policy belongs to the caller.
	ErrUnavailable = errors.New("inference service unavailable")

	// ErrTimeout indicates the bounded deadline elapsed before a response.
	ErrTimeout = errors.New("inference request timed out")
)

// Request is a single completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Client sends prompts to a text-completion service.
type Client interface {
	// Name returns the client identifier (e.g., "openai", "anthropic", "mock").
	Name() string

	// Complete sends the request and returns the raw response text.
	// Failures are wrapped in ErrUnavailable or ErrTimeout.
	Complete(ctx context.Context, req Request) (string, error)
}

// wrapTransport maps a transport-level error onto the client error taxonomy.
func wrapTransport(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", name, ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s: %w: %v", name, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
}
