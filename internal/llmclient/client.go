// Package llmclient defines the capability the scrubber consumes from an
// external chat-completion model, and ships one concrete adapter
// (OpenAIClient) against OpenAI-compatible APIs.
//
// The core (internal/llmdetector) depends only on the Client interface, so
// a caller can substitute a mock, a different provider, or a local gateway
// without touching detection logic.
package llmclient

import (
	"context"
	"errors"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is a single chat-completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	// JSONObject, when true, asks the provider to constrain its output to a
	// strict JSON object (response_format: json_object in the wire API).
	JSONObject bool
	// Attempt is the 0-based retry attempt number, surfaced to the client
	// purely for logging/metrics; it must not change request semantics.
	Attempt int
}

// Usage reports token accounting for cost tracking.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the result of a chat-completion call.
type Response struct {
	Content string
	Usage   *Usage // nil if the provider did not report usage
}

// Client is the capability the LLM detector depends on. Implementations
// must honor ctx's deadline (the detector sets a per-attempt adaptive
// timeout) and return promptly on cancellation.
type Client interface {
	ChatJSON(ctx context.Context, req Request) (Response, error)
}

// AuthError marks an authentication/validation failure (HTTP 400/401
// equivalent) that must not be retried: retrying a malformed request or
// invalid credential only repeats the same failure.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "llmclient: authentication or validation error"
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error it wraps) is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
