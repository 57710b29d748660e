// Package llm provides the pluggable completion backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lazypower/recall/internal/config"
)

// ErrNoAPIKey marks the no-backend case. Callers degrade to
// persistence-only operation instead of failing.
var ErrNoAPIKey = errors.New("completion disabled: RECALL_API_KEY not set")

// Defaults applied when options are zero.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

// Message is one turn sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func (o Options) withDefaults() Options {
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	return o
}

// Usage holds token accounting from a completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is a successful completion. Failures travel as ordinary error
// values; nothing in this package panics across the boundary.
type Result struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Client is the capability set every completion backend implements.
// Variants are concrete types selected at construction time.
type Client interface {
	// Complete sends the conversation and blocks for the full reply.
	Complete(ctx context.Context, msgs []Message, opts Options) (*Result, error)

	// CompleteStream delivers the reply via onChunk. Backends without true
	// streaming send one chunk with the whole content before returning.
	CompleteStream(ctx context.Context, msgs []Message, opts Options, onChunk func(string)) (*Result, error)

	// Models lists the model identifiers the backend accepts.
	Models() []string

	// ValidateConfig reports whether the client is usable as configured.
	ValidateConfig() error
}

// HTTPClient is the subset of http.Client the gateway needs; tests swap in
// a stub.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// NewClient builds a Client from config. An empty API key means no backend:
// the caller should treat completion as disabled, not as an error in the
// persistence path.
func NewClient(cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("new client: %w", ErrNoAPIKey)
	}
	return NewGateway(cfg), nil
}
