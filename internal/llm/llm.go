// Package llm provides the chat completion client the task agents
// generate text with. It speaks the OpenAI-compatible chat completions
// protocol, which covers Groq, OpenAI, and local inference servers
// behind a single configuration surface.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client generates a completion from a prompt. Implementations handle
// rate limiting and retries internally; an error return means the
// provider could not serve the call within its retry budget.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderError reports a generation provider failure. Transient
// distinguishes failures that were retried (rate limits, server
// errors, transport faults) from fatal ones (auth, bad request).
type ProviderError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
