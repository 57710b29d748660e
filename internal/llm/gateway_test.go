package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/recall/internal/config"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    "openai",
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		APIKey:      "test-key",
		TimeoutSecs: 5,
	}
}

func TestGatewayComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini-2024",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "Hi there!"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4},
		})
	}))
	defer srv.Close()

	g := NewGateway(testConfig(srv.URL))
	res, err := g.Complete(context.Background(), []Message{{Role: "user", Content: "Hello!"}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "/openai/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.EqualValues(t, DefaultMaxTokens, gotBody["max_tokens"])
	assert.InDelta(t, DefaultTemperature, gotBody["temperature"], 0.001)

	assert.Equal(t, "Hi there!", res.Content)
	assert.Equal(t, "gpt-4o-mini-2024", res.Model)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, 12, res.Usage.InputTokens)
	assert.Equal(t, 4, res.Usage.OutputTokens)
}

func TestGatewayNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGateway(testConfig(srv.URL))
	_, err := g.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Equal(t, "HTTP 502", err.Error())
}

func TestGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	g := NewGateway(cfg)
	g.client = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := g.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.Error(t, err)
}

func TestGatewayCompleteStreamDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "chunked reply"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer srv.Close()

	g := NewGateway(testConfig(srv.URL))

	var chunks []string
	res, err := g.CompleteStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{},
		func(chunk string) { chunks = append(chunks, chunk) })
	require.NoError(t, err)

	// Single chunk carrying the whole content, then done
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunked reply", chunks[0])
	assert.Equal(t, "chunked reply", res.Content)
}

func TestGatewayValidateConfig(t *testing.T) {
	g := NewGateway(testConfig("http://localhost:0"))
	assert.NoError(t, g.ValidateConfig())

	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""
	assert.Error(t, NewGateway(cfg).ValidateConfig())

	cfg = testConfig("http://localhost:0")
	cfg.Model = ""
	assert.Error(t, NewGateway(cfg).ValidateConfig())
}

func TestNewClientRequiresKey(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""
	_, err := NewClient(cfg)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	cfg.APIKey = "k"
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)
}
