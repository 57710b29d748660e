package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lazypower/recall/internal/config"
)

// HTTPError is a non-2xx response from the completion endpoint.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Gateway talks to a chat-completion-style endpoint:
// POST <base>/<provider>/chat/completions with bearer auth.
type Gateway struct {
	baseURL  string
	provider string
	apiKey   string
	model    string
	client   HTTPClient
}

// NewGateway creates a gateway client from config with a fixed request
// timeout (default 30s).
func NewGateway(cfg config.LLMConfig) *Gateway {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewGatewayWithClient is like NewGateway but with a caller-supplied HTTP
// client, used by tests.
func NewGatewayWithClient(cfg config.LLMConfig, client HTTPClient) *Gateway {
	g := NewGateway(cfg)
	g.client = client
	return g
}

func (g *Gateway) endpoint() string {
	return g.baseURL + "/" + g.provider + "/chat/completions"
}

type gatewayRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type gatewayResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends the conversation and blocks for the full reply.
func (g *Gateway) Complete(ctx context.Context, msgs []Message, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	model := opts.Model
	if model == "" {
		model = g.model
	}

	body, err := json.Marshal(gatewayRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	return &Result{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

// CompleteStream degrades to one chunk followed by the final result; the
// gateway treats the backend as a single blocking call.
func (g *Gateway) CompleteStream(ctx context.Context, msgs []Message, opts Options, onChunk func(string)) (*Result, error) {
	res, err := g.Complete(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		onChunk(res.Content)
	}
	return res, nil
}

// Models lists the model identifiers the gateway accepts.
func (g *Gateway) Models() []string {
	return []string{g.model}
}

// ValidateConfig reports configuration problems before the first request.
func (g *Gateway) ValidateConfig() error {
	if g.apiKey == "" {
		return fmt.Errorf("api key not set")
	}
	if g.baseURL == "" {
		return fmt.Errorf("base URL not set")
	}
	if g.provider == "" {
		return fmt.Errorf("provider not set")
	}
	if g.model == "" {
		return fmt.Errorf("model not set")
	}
	return nil
}

var _ Client = (*Gateway)(nil)
