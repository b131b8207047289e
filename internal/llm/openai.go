package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048

	defaultRateLimit = 50.0 / 60.0 // ~0.83 requests per second
	defaultBurst     = 5           // Allow bursts of up to 5 requests
)

// Config holds OpenAI-compatible client configuration.
type Config struct {
	// BaseURL is the API root, e.g. https://api.groq.com/openai/v1.
	BaseURL     string
	Model       string
	APIKey      string
	MaxRetries  int
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// RateLimit is the sustained request rate in requests per second.
	// Zero uses the default.
	RateLimit float64
	// RetryCounter, when set, is incremented once per retry attempt.
	RetryCounter prometheus.Counter
}

// OpenAIClient implements Client against any OpenAI-compatible chat
// completions endpoint.
type OpenAIClient struct {
	model        string
	apiKey       string
	baseURL      string
	temperature  float64
	maxTokens    int
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	baseBackoff  time.Duration
	retryCounter prometheus.Counter
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model required")
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	maxRetries := defaultMaxRetries
	if cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}
	rateLimit := defaultRateLimit
	if cfg.RateLimit > 0 {
		rateLimit = cfg.RateLimit
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAIClient{
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:      rate.NewLimiter(rate.Limit(rateLimit), defaultBurst),
		maxRetries:   maxRetries,
		baseBackoff:  defaultBaseBackoff,
		retryCounter: cfg.RetryCounter,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the prompt and returns the generated text.
//
// The call waits on the rate limiter, then retries transient failures
// (429, 5xx, transport errors) with exponential backoff up to the
// configured retry budget. Non-transient API errors return
// immediately. Exhausting the budget is fatal for the request and
// surfaces as a non-transient *ProviderError.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req := chatRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.retryCounter != nil {
				c.retryCounter.Inc()
			}
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := c.doRequest(ctx, req)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return "", err
		}
	}

	return "", &ProviderError{
		Err: fmt.Errorf("max retries exceeded: %w", lastErr),
	}
}

// doRequest performs a single HTTP request to the chat completions
// endpoint.
func (c *OpenAIClient) doRequest(ctx context.Context, req chatRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &ProviderError{Transient: true, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Transient: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ProviderError{StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("rate limited")}
	}
	if resp.StatusCode >= 500 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("server error: %s", string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return "", &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", errResp.Error.Message)}
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", string(body))}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &ProviderError{Transient: true, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return "", &ProviderError{Transient: true, Err: fmt.Errorf("empty response")}
	}

	return chatResp.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
