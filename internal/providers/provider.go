package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"model_gateway/internal/models"
)

// Message is one turn of chat history, role "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the generation knobs the gateway passes through.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// GenerateRequest is a normalized request to one backend.
type GenerateRequest struct {
	Model   string // backend-local model name, already stripped of routing prefixes
	Prompt  string
	History []Message
	Params  Params
}

// Completion is a normalized non-streaming result.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Chunk is one streamed text fragment. The stream channel is closed
// after the final chunk (Done) or when the context is cancelled.
type Chunk struct {
	Content string
	Done    bool
}

// Adapter bridges the router to one backend kind. Implementations must
// normalize every failure into an *AdapterError; raw transport errors
// never cross this boundary.
type Adapter interface {
	// Kind identifies the backend kind ("openai", "anthropic", "node",
	// "local", "mock")
	Kind() string

	// ListModels returns the models this backend can serve. Each entry's
	// ID is the fully-qualified routable identifier.
	ListModels(ctx context.Context) ([]models.ModelInfo, error)

	// Generate produces a complete response
	Generate(ctx context.Context, req GenerateRequest) (*Completion, error)
}

// Streamer is the optional streaming capability, declared per adapter.
type Streamer interface {
	// Stream produces text chunks until done or the context is
	// cancelled. Cancellation stops the underlying generation.
	Stream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error)
}

// Embedder is the optional embeddings capability.
type Embedder interface {
	Embeddings(ctx context.Context, text string) ([]float64, error)
}

// FailureKind is the closed set of normalized adapter failures.
type FailureKind string

const (
	FailureUnreachable     FailureKind = "unreachable"
	FailureTimeout         FailureKind = "timeout"
	FailureInvalidResponse FailureKind = "invalid_response"
	FailureAuth            FailureKind = "auth_error"
	FailureRateLimited     FailureKind = "rate_limited"
)

// AdapterError wraps any backend failure with its normalized kind.
type AdapterError struct {
	Adapter string
	Kind    FailureKind
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s adapter %s: %v", e.Adapter, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s adapter %s", e.Adapter, e.Kind)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Fail builds a normalized adapter error.
func Fail(adapter string, kind FailureKind, err error) *AdapterError {
	return &AdapterError{Adapter: adapter, Kind: kind, Err: err}
}

// FailureOf extracts the normalized kind from any error chain; ok is
// false for errors that did not originate in an adapter.
func FailureOf(err error) (FailureKind, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// classifyTransport maps a client-side error (dial failure, timeout,
// cancelled context) to its failure kind.
func classifyTransport(adapter string, err error) *AdapterError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Fail(adapter, FailureTimeout, err)
	case errors.Is(err, context.Canceled):
		// Caller abandoned the request; report as timeout so the router
		// does not keep walking the chain for a consumer that is gone
		return Fail(adapter, FailureTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Fail(adapter, FailureTimeout, err)
	}

	return Fail(adapter, FailureUnreachable, err)
}

// classifyStatus maps an HTTP status from a reachable backend to its
// failure kind.
func classifyStatus(adapter string, statusCode int, body []byte) *AdapterError {
	err := fmt.Errorf("backend returned status %d: %s", statusCode, truncate(body, 200))
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return Fail(adapter, FailureAuth, err)
	case statusCode == http.StatusTooManyRequests:
		return Fail(adapter, FailureRateLimited, err)
	default:
		return Fail(adapter, FailureInvalidResponse, err)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// newHTTPClient builds the shared transport profile for HTTP adapters.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// historyWithPrompt flattens history plus the current prompt into the
// message list every backend expects.
func historyWithPrompt(req GenerateRequest) []Message {
	msgs := make([]Message, 0, len(req.History)+1)
	msgs = append(msgs, req.History...)
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt})
	return msgs
}
